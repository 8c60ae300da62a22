// Package form decodes contact-form request bodies into string fields.
package form

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// MaxBodyBytes bounds how much of a request body is read.
const MaxBodyBytes = 64 << 10

// Encoding identifies how a body was decoded.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingForm
	EncodingJSON
)

func (e Encoding) String() string {
	switch e {
	case EncodingForm:
		return "form"
	case EncodingJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Result is the outcome of Parse. Fields is never nil; an unrecognized body
// yields an empty map so that validation reports the missing fields.
type Result struct {
	Encoding Encoding
	Fields   map[string]string
}

// Get returns the named field, or "" when absent. Values are not trimmed.
func (r Result) Get(key string) string {
	return r.Fields[key]
}

func unknown() Result {
	return Result{Encoding: EncodingUnknown, Fields: map[string]string{}}
}

// Parse reads the request body once. URL-encoded bodies are recognized by
// content type; any other body is tried as a JSON object.
func Parse(r *http.Request) Result {
	if r.Body == nil {
		return unknown()
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil || len(body) > MaxBodyBytes {
		return unknown()
	}

	return ParseBytes(r.Header.Get("Content-Type"), body)
}

// ParseBytes decodes body according to contentType.
func ParseBytes(contentType string, body []byte) Result {
	if strings.Contains(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
		return parseForm(body)
	}
	return parseJSON(body)
}

// parseForm decodes pairs one at a time. A pair that url.ParseQuery would
// reject, such as one with a raw ";" or a stray "%", keeps its undecoded
// text instead of discarding the whole body.
func parseForm(body []byte) Result {
	fields := make(map[string]string)
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		if key == "" {
			continue
		}
		if _, seen := fields[key]; !seen {
			fields[key] = unescape(value)
		}
	}
	return Result{Encoding: EncodingForm, Fields: fields}
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return strings.ReplaceAll(s, "+", " ")
}

func parseJSON(body []byte) Result {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return unknown()
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return unknown()
	}

	fields := make(map[string]string, len(raw))
	for key, v := range raw {
		switch val := v.(type) {
		case string:
			fields[key] = val
		case json.Number:
			fields[key] = val.String()
		case bool:
			if val {
				fields[key] = "true"
			} else {
				fields[key] = "false"
			}
		}
		// null, arrays and objects are dropped
	}
	return Result{Encoding: EncodingJSON, Fields: fields}
}
