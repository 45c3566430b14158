package recipe

import (
	"encoding/json"
	"os"
	"strings"
)

// EnvVar is one environment variable.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Env is an ordered set of environment variables.
type Env struct {
	vars []EnvVar
}

// Define sets key to value, replacing any previous definition.
func (e *Env) Define(key, value string) {
	for i := range e.vars {
		if e.vars[i].Key == key {
			e.vars[i].Value = value
			return
		}
	}
	e.vars = append(e.vars, EnvVar{Key: key, Value: value})
}

// Append adds value to a space separated variable such as CFLAGS.
func (e *Env) Append(key, value string) {
	if cur, ok := e.Get(key); ok && cur != "" {
		value = cur + " " + value
	}
	e.Define(key, value)
}

// Prepend adds value in front of a list variable such as PATH.
func (e *Env) Prepend(key, value string) {
	if cur, ok := e.Get(key); ok && cur != "" {
		value = value + string(os.PathListSeparator) + cur
	}
	e.Define(key, value)
}

// Get returns the value of key.
func (e *Env) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, v := range e.vars {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// Vars returns the variables in definition order.
func (e *Env) Vars() []EnvVar {
	if e == nil {
		return nil
	}
	out := make([]EnvVar, len(e.vars))
	copy(out, e.vars)
	return out
}

// Merge defines every variable of other on e.
func (e *Env) Merge(other *Env) {
	for _, v := range other.Vars() {
		e.Define(v.Key, v.Value)
	}
}

// Clone returns an independent copy.
func (e *Env) Clone() *Env {
	return &Env{vars: e.Vars()}
}

// Environ returns the variables as "key=value" strings.
func (e *Env) Environ() []string {
	out := make([]string, 0, len(e.Vars()))
	for _, v := range e.Vars() {
		out = append(out, v.Key+"="+v.Value)
	}
	return out
}

// Script renders the variables as a POSIX sh script of export lines.
func (e *Env) Script() string {
	var b strings.Builder
	for _, v := range e.Vars() {
		b.WriteString("export ")
		b.WriteString(v.Key)
		b.WriteString("='")
		b.WriteString(strings.ReplaceAll(v.Value, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func (e *Env) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Vars())
}

func (e *Env) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &e.vars)
}
