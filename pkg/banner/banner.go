package banner

import (
	"fmt"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██╗     ███████╗██████╗  ██████╗ ███████╗██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██║     ██╔════╝██╔══██╗██╔════╝ ██╔════╝██╔══██╗
██║     ███████║███████║   ██║   ██║     █████╗  ██║  ██║██║  ███╗█████╗  ██████╔╝
██║     ██╔══██║██╔══██║   ██║   ██║     ██╔══╝  ██║  ██║██║   ██║██╔══╝  ██╔══██╗
╚██████╗██║  ██║██║  ██║   ██║   ███████╗███████╗██████╔╝╚██████╔╝███████╗██║  ██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝╚══════╝╚═════╝  ╚═════╝ ╚══════╝╚═╝  ╚═╝
`

// Print writes the startup banner with runtime info to stdout.
func Print(addr, dbPath, detectionURL, owner, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:     %s\n", addr)
	fmt.Printf("DB Path:    %s\n", dbPath)
	fmt.Printf("Detection:  %s\n", detectionURL)
	fmt.Printf("Owner:      %s\n", owner)
	if version != "" {
		fmt.Printf("Version:    %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/threads                  - Create a chat thread")
	fmt.Println("POST /v1/threads/{id}/messages    - Send a message (JSON: text, image)")
	fmt.Println("GET  /v1/balance/{currency}       - Current balance")
	fmt.Println("POST /v1/wallet/connect           - Switch owner identity")
	fmt.Println("GET  /metrics                     - Prometheus metrics")
	fmt.Println("GET  /docs/                       - API docs")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://%s/v1/threads' -d '{\"title\":\"demo\"}'\n", addr)
	fmt.Printf("curl 'http://%s/v1/balance/token'\n", addr)
}
