package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatledger/pkg/chat"
	"chatledger/pkg/detect"
	"chatledger/pkg/ledger"
	"chatledger/pkg/logger"
	"chatledger/pkg/metrics"
	"chatledger/pkg/models"
	"chatledger/pkg/utils"
)

// ErrThreadNotFound rejects sends addressed to unknown threads before
// any balance mutation.
var ErrThreadNotFound = errors.New("thread not found")

// Detector is the gateway capability the orchestrator consumes; tests
// substitute fakes.
type Detector interface {
	Detect(ctx context.Context, message, imageBase64 string) (*models.DetectionResult, error)
}

// Pricing holds per-call message costs. A text-only message is charged
// the prompt price, a message with an attached image only the
// generation price.
type Pricing struct {
	Currency   string
	Prompt     float64
	Generation float64
}

// Orchestrator sequences balance checking, chat persistence, and the
// external detection call for one send operation. It is the only
// component that coordinates across the ledger, the chat store, and the
// gateway.
type Orchestrator struct {
	ledger  *ledger.Ledger
	chats   *chat.Store
	gateway Detector
	pricing Pricing
}

// SendResult is the confirmed outcome of one SendMessage call; the API
// layer renders from it rather than mutating state optimistically.
type SendResult struct {
	// Insufficient is true when the debit was refused; only BotMessage
	// (the insufficiency notice) is set then.
	Insufficient bool            `json:"insufficient,omitempty"`
	Charged      float64         `json:"charged,omitempty"`
	UserMessage  *models.Message `json:"user_message,omitempty"`
	BotMessage   models.Message  `json:"bot_message"`
	// Detection carries the transient result for one display cycle;
	// it is never persisted.
	Detection *models.DetectionResult `json:"detection,omitempty"`
}

func New(l *ledger.Ledger, c *chat.Store, d Detector, p Pricing) *Orchestrator {
	return &Orchestrator{ledger: l, chats: c, gateway: d, pricing: p}
}

// SendMessage runs the full send flow: debit, append user message,
// placeholder, detection (when an image is attached), finalize. A
// failed detection is reported as a bot message and the debit is not
// refunded; the error return is reserved for unknown threads.
func (o *Orchestrator) SendMessage(ctx context.Context, threadID, text, imageBase64 string) (*SendResult, error) {
	if _, ok := o.chats.GetThread(threadID); !ok {
		return nil, ErrThreadNotFound
	}

	cost := o.pricing.Prompt
	reason := "prompt"
	if imageBase64 != "" {
		cost = o.pricing.Generation
		reason = "generation"
	}

	if !o.ledger.Debit(o.pricing.Currency, cost, reason) {
		notice := models.Message{
			Author: models.AuthorBot,
			Text: fmt.Sprintf("Insufficient balance: this message costs %g %s but you have %g. Top up to continue.",
				cost, o.pricing.Currency, o.ledger.GetBalance(o.pricing.Currency)),
		}
		if !o.chats.AppendMessage(threadID, notice) {
			return nil, ErrThreadNotFound
		}
		th, _ := o.chats.GetThread(threadID)
		metrics.InsufficientTotal.Inc()
		logger.Info("send_rejected_insufficient", "thread", threadID, "cost", cost)
		return &SendResult{Insufficient: true, BotMessage: lastMessage(th)}, nil
	}

	// Ids and timestamps are assigned here so the flow never has to
	// re-read the thread to learn them; the thread can be deleted by a
	// bus subscriber between any two appends.
	now := time.Now().UTC().UnixNano()
	userMsg := models.Message{
		ID:     utils.GenID(),
		Thread: threadID,
		Author: models.AuthorUser,
		TS:     now,
		Text:   text,
		Image:  imageBase64,
	}
	if !o.chats.AppendMessage(threadID, userMsg) {
		logger.Warn("send_thread_vanished", "thread", threadID)
		return nil, ErrThreadNotFound
	}

	placeholder := models.Message{
		ID:         utils.GenID(),
		Thread:     threadID,
		Author:     models.AuthorBot,
		TS:         now,
		Processing: true,
	}
	if !o.chats.AppendMessage(threadID, placeholder) {
		logger.Warn("send_thread_vanished", "thread", threadID)
		return nil, ErrThreadNotFound
	}
	placeholderID := placeholder.ID

	if imageBase64 == "" {
		reply := fmt.Sprintf("I received your message: %q. I'm an object detection assistant. Upload an image and I'll tell you what objects I can detect!", text)
		o.chats.UpdateMessage(threadID, placeholderID, reply)
		return o.result(threadID, placeholderID, userMsg, cost, nil), nil
	}

	start := time.Now()
	res, err := o.gateway.Detect(ctx, text, imageBase64)
	metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	metrics.DetectionRequests.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil {
		// The debit is deliberately not refunded on failure.
		o.chats.RemoveMessage(threadID, placeholderID)
		failure := models.Message{Author: models.AuthorBot, Text: failureText(err)}
		o.chats.AppendMessage(threadID, failure)
		th, _ := o.chats.GetThread(threadID)
		logger.Warn("send_detection_failed", "thread", threadID, "error", err)
		return &SendResult{Charged: cost, UserMessage: &userMsg, BotMessage: lastMessage(th)}, nil
	}

	o.chats.UpdateMessage(threadID, placeholderID, summaryText(res))
	out := o.result(threadID, placeholderID, userMsg, cost, res)
	logger.Info("send_ok", "thread", threadID, "cost", cost, "detections", len(res.Detections))
	return out, nil
}

func (o *Orchestrator) result(threadID, botID string, user models.Message, cost float64, det *models.DetectionResult) *SendResult {
	th, _ := o.chats.GetThread(threadID)
	var bot models.Message
	for _, m := range th.Messages {
		if m.ID == botID {
			bot = m
			break
		}
	}
	return &SendResult{Charged: cost, UserMessage: &user, BotMessage: bot, Detection: det}
}

// summaryText prefers the server's own phrasing and falls back to a
// summary built from the detection list.
func summaryText(res *models.DetectionResult) string {
	if res.Response != "" {
		return res.Response
	}
	if len(res.Detections) == 0 {
		return "I didn't detect any recognizable objects in this image."
	}
	parts := make([]string, 0, len(res.Detections))
	for _, d := range res.Detections {
		parts = append(parts, fmt.Sprintf("%s (%.0f%%)", d.Class, d.Confidence*100))
	}
	return "I analyzed the image and detected: " + strings.Join(parts, ", ") + "."
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, detect.ErrImageTooLarge) {
		return "rejected"
	}
	var derr *detect.Error
	if errors.As(err, &derr) && derr.Unreachable() {
		return "unreachable"
	}
	return "server_error"
}

func failureText(err error) string {
	if errors.Is(err, detect.ErrImageTooLarge) {
		return "That image is too large to analyze. Please attach a smaller image and try again."
	}
	var derr *detect.Error
	if errors.As(err, &derr) && derr.Unreachable() {
		return "I couldn't reach the detection server. Please check that it is running and try again."
	}
	return "The detection server returned an error while analyzing your image. Please try again."
}

func lastMessage(th models.Thread) models.Message {
	if len(th.Messages) == 0 {
		return models.Message{}
	}
	return th.Messages[len(th.Messages)-1]
}
