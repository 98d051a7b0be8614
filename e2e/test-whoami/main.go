package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

// Smoke test for the MCP surface: calls the whoami tool with a real
// bearer token against a running relay.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <bearer-token> [server-addr]", os.Args[0])
	}

	bearerToken := os.Args[1]
	serverAddr := "http://localhost:8000"
	if len(os.Args) > 2 {
		serverAddr = "http://localhost" + os.Args[2]
	}

	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "whoami",
			"arguments": map[string]any{},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("Failed to encode request: %v", err)
	}

	req, err := http.NewRequest("POST", serverAddr+"/mcp", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode == http.StatusOK {
		fmt.Println("✅ whoami call succeeded")
		fmt.Printf("\nResponse:\n%s\n", string(respBody))
	} else {
		fmt.Printf("❌ whoami call failed\n")
		fmt.Printf("Status: %d\n", resp.StatusCode)
		fmt.Printf("Body: %s\n", string(respBody))
	}
}
