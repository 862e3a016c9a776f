package echo

import (
	"net/http"
)

// HelpText documents the query and header contract of the echo routes.
const HelpText = `{
  "Query": {
    "Status": "Optional Int, return 500 if status is less than 200 or greater than 600",
    "Timeout": "Optional Int, in milliseconds, negative means 0, capped at 120000",
    "Delay": "Optional Int, in milliseconds, has lower priority than Timeout",
    "Headers": {
      "X-Request-Id": "Request Id",
      "X-Real-Ip": "Client IP, preferred over X-Forwarded-For",
      "X-Forwarded-For": "Client IP",
      "User-Agent": "Client user agent",
      "Content-Type": "POST/PUT only, echoed back, defaults to text/plain"
    }
  },
  "Response": {
    "Status": "Status",
    "Body": "POST/PUT only, the request body",
    "Headers": {
      "X-Request-Id": "Request Id",
      "X-Response-Time": "Response time, in milliseconds",
      "X-Client-iP": "Client IP",
      "X-Client-User-Agent": "Client user agent"
    }
  }
}`

// Help serves HelpText.
func Help(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(HelpText))
}
