package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

// Small liveness probe for deployment scripts: checks the chatledger
// server and, optionally, the detection endpoint. Exit code 0 when
// everything probed is healthy.
func main() {
	server := flag.String("server", "http://127.0.0.1:8080", "chatledger base URL")
	detection := flag.String("detection", "", "detection endpoint base URL (optional)")
	timeout := flag.Duration("timeout", 5*time.Second, "per-probe timeout")
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}

	ok := probe(client, *server+"/healthz", *timeout)
	fmt.Printf("server: %s\n", status(ok))

	detOK := true
	if *detection != "" {
		detOK = probe(client, *detection+"/docs", *timeout)
		fmt.Printf("detection: %s\n", status(detOK))
	}

	if !ok || !detOK {
		os.Exit(1)
	}
}

func probe(client *fasthttp.Client, url string, timeout time.Duration) bool {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := client.DoTimeout(req, resp, timeout); err != nil {
		return false
	}
	return resp.StatusCode() >= 200 && resp.StatusCode() < 500
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "unreachable"
}
