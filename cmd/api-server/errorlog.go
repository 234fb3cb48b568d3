package main

import (
	"log"
	"strings"

	"villas-admin/pkg/logging"
)

// serverErrorWriter 把 http.Server 内部错误转写到结构化日志
//
// 客户端提前断开、TLS 握手失败属于噪音，降为 debug。
type serverErrorWriter struct {
	log *logging.Logger
}

func (w *serverErrorWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if strings.Contains(msg, "TLS handshake error") || strings.Contains(msg, "broken pipe") {
		w.log.Debug(msg)
	} else {
		w.log.Warn(msg)
	}
	return len(p), nil
}

// newServerErrorLog 用于 http.Server.ErrorLog
func newServerErrorLog(l *logging.Logger) *log.Logger {
	return log.New(&serverErrorWriter{log: l.Named("http-server")}, "", 0)
}
