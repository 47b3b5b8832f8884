// Package langserver provides a resilient JSON-RPC client for a
// child-process language server.
//
// The client spawns the server binary with a fixed --stdio invocation,
// frames messages with Content-Length headers, correlates requests with
// responses, routes server-initiated requests and $/progress streams, and
// recovers from process crashes with exponential backoff.
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	client := langserver.New(langserver.WithLogger(slog.Default()))
//	defer client.Shutdown()
//
//	if err := client.Start(ctx, "/usr/local/bin/language-server", nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	// The initialize handshake is the caller's responsibility.
//	if _, err := client.SendRequest(ctx, "initialize", initParams); err != nil {
//	    log.Fatal(err)
//	}
//	client.MarkConnected()
//
// # Reconnection
//
// When the server process exits with a non-zero code, every pending request
// is rejected, a respawn is scheduled on an escalating backoff table, and
// subscribers of OnReconnecting are told to redo the handshake:
//
//	client.OnReconnecting(func() {
//	    go func() {
//	        client.SendRequest(ctx, "initialize", initParams)
//	        client.MarkConnected()
//	    }()
//	})
//
// After the reconnect budget is exhausted the client enters the failed
// state and stays there until the next explicit Start.
//
// # Server-initiated requests
//
// The server may call back into the client. Register one handler and answer
// with SendResponse:
//
//	client.OnServerRequest(func(method string, id int64, params any) {
//	    result := handle(method, params)
//	    client.SendResponse(ctx, id, result)
//	})
//
// # Error Handling
//
// The SDK provides typed errors for different failure scenarios:
//
//	_, err := client.SendRequest(ctx, "textDocument/completion", params)
//	if errors.Is(err, langserver.ErrRequestTimeout) {
//	    // this request timed out; others are unaffected
//	}
//	if exitErr, ok := errors.AsType[*langserver.ProcessExitError](err); ok {
//	    log.Printf("server crashed with code %d", exitErr.ExitCode)
//	}
package langserver
