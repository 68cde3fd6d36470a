package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ramesh-perabattula/EduPay/core"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "TEST : ", 0), &core.Config{Debug: true})

	actor := core.Actor{ID: "7", Username: "registrar"}
	logger.Error("recording payment", errors.New("boom"), map[string]interface{}{"usn": "1AB21CS001"}, actor)

	out := buf.String()
	assert.Contains(t, out, "TEST : recording payment\n")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "usn:1AB21CS001")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{}
	err := errors.New("boom")
	args := logger.prepare("msg", []interface{}{err, core.Actor{ID: "1"}, core.Actor{ID: "2"}})
	assert.Equal(t, []interface{}{"msg", err}, args)
}
