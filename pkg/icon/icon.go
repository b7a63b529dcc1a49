package icon

import _ "embed"

// Logo is the mdman tray icon
//
//go:embed assets/mdman-logo.ico
var Logo []byte
