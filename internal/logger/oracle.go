package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

// 中文说明：
// Oracle 调用日志：把发给模型的提示词与模型原始输出写入独立文件，
// 便于排查规划/总结失败的原因；payload 级别的转储默认关闭。

var (
	oracleMu          sync.Mutex
	oracleLog         *log.Logger
	oracleDumpPayload bool
)

func SetOracleWriter(w io.Writer) {
	oracleMu.Lock()
	defer oracleMu.Unlock()
	if w == nil {
		oracleLog = nil
		return
	}
	oracleLog = log.New(w, "", log.LstdFlags)
}

func EnableOraclePayloadDump(enabled bool) {
	oracleMu.Lock()
	oracleDumpPayload = enabled
	oracleMu.Unlock()
}

type oracleSection struct {
	Title string
	Body  string
}

func logOracle(kind, provider, purpose string, sections []oracleSection) {
	oracleMu.Lock()
	sink := oracleLog
	oracleMu.Unlock()
	if sink == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[ORACLE]")
	for _, tag := range []string{kind, provider, purpose} {
		if tag != "" {
			b.WriteString("[")
			b.WriteString(tag)
			b.WriteString("]")
		}
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	sink.Print(b.String())
}

func LogOracleRequest(provider, purpose, systemPrompt, userPrompt, payload string) {
	sections := []oracleSection{
		{Title: "SYSTEM", Body: systemPrompt},
		{Title: "USER", Body: userPrompt},
	}
	if oracleDumpPayload && strings.TrimSpace(payload) != "" {
		sections = append(sections, oracleSection{Title: "PAYLOAD", Body: payload})
	}
	logOracle("request", provider, purpose, sections)
}

func LogOracleResponse(provider, purpose, raw string) {
	logOracle("response", provider, purpose, []oracleSection{{Title: "RAW", Body: raw}})
}
