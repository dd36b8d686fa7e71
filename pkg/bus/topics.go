package bus

import "chatledger/pkg/models"

// Shared topics for the coordination core. One topic per payload type.
var (
	BalanceChanged      = NewTopic[models.BalanceChanged]("ledger.balance_changed")
	TransactionRecorded = NewTopic[models.TransactionRecorded]("ledger.transaction_recorded")
	ThreadCreated       = NewTopic[models.ThreadCreated]("chat.thread_created")
	MessageAppended     = NewTopic[models.MessageAppended]("chat.message_appended")
	OwnerChanged        = NewTopic[models.OwnerChanged]("wallet.owner_changed")
)
