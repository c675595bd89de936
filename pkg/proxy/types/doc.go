// Package types defines the OpenAI-compatible error body returned by the
// relay's HTTP surface.
//
// Request and response bodies are not modelled here: the relay forwards
// them as raw JSON. Only errors produced by the relay itself need a shape:
//
//	{
//	  "error": {
//	    "message": "Read timeout - upstream service took too long to respond",
//	    "type": "gateway_timeout",
//	    "code": "upstream_timeout"
//	  }
//	}
//
// The code is the forwarder's failure category, so clients can branch on it
// without parsing the message.
package types
