// Package framing implements Content-Length framing for JSON-RPC messages.
//
// Each frame on the wire is an ASCII header of the form
// "Content-Length: <n>\r\n\r\n" followed by exactly n bytes of UTF-8 JSON.
// The package owns no message semantics: it encodes outgoing messages and
// turns an incoming byte stream back into parsed JSON objects.
package framing
