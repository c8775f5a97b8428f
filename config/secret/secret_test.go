package secret

import (
	"encoding/json"
	"fmt"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestSecret(t *testing.T) {
	s := String("hcaik_0123456789")
	assert.Check(t, cmp.Equal(s.Raw(), "hcaik_0123456789"))
	assert.Check(t, cmp.Equal(fmt.Sprintf("%v", s), "REDACTED"))
	assert.Check(t, cmp.Equal(fmt.Sprintf("%#v", s), "REDACTED"))
	assert.Check(t, cmp.Equal(s.String(), "REDACTED"))

	b, err := json.Marshal(s)
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(string(b), `"REDACTED"`))
}

func TestSecret_InStruct(t *testing.T) {
	cfg := struct {
		Dataset string
		Key     String
	}{Dataset: "myk8sapp", Key: "hcaik_0123456789"}

	b, err := json.Marshal(cfg)
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(string(b), `{"Dataset":"myk8sapp","Key":"REDACTED"}`))
	assert.Check(t, cmp.Equal(fmt.Sprintf("%+v", cfg), "{Dataset:myk8sapp Key:REDACTED}"))
}
