package protocol

import (
	"fmt"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Message is the CDP wire envelope: a request ({id, method, params}), a
// response ({id, result} or {id, error}), or an event ({method, params}).
//
// Hand-written in the style of a generated easyjson file (cf.
// chromedp/cdp/io/easyjson.go in the reference corpus) rather than run
// through the easyjson generator, since the protocol package intentionally
// defines only this envelope and not the closed CDP command catalogue.
type Message struct {
	ID        int64             `json:"id,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Method    MethodType         `json:"method,omitempty"`
	Params    easyjson.RawMessage `json:"params,omitempty"`
	Result    easyjson.RawMessage `json:"result,omitempty"`
	Error     *Error            `json:"error,omitempty"`
}

// Error is a CDP protocol-level error, returned in a response envelope in
// place of a result.
type Error struct {
	Code    int64             `json:"code"`
	Message string            `json:"message"`
	Data    easyjson.RawMessage `json:"data,omitempty"`
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("cdp error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

// MarshalEasyJSON supports easyjson.Marshaler.
func (m Message) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	first := true
	if m.ID != 0 {
		w.RawString(`"id":`)
		w.Int64(m.ID)
		first = false
	}
	if m.SessionID != "" {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"sessionId":`)
		w.String(m.SessionID)
		first = false
	}
	if m.Method != "" {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"method":`)
		w.String(string(m.Method))
		first = false
	}
	if m.Params != nil {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"params":`)
		m.Params.MarshalEasyJSON(w)
		first = false
	}
	if m.Result != nil {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"result":`)
		m.Result.MarshalEasyJSON(w)
		first = false
	}
	if m.Error != nil {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"error":`)
		m.Error.MarshalEasyJSON(w)
	}
	w.RawByte('}')
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler.
func (m *Message) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeString()
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "id":
			m.ID = in.Int64()
		case "sessionId":
			m.SessionID = in.String()
		case "method":
			m.Method = MethodType(in.String())
		case "params":
			m.Params = easyjson.RawMessage(in.Raw())
		case "result":
			m.Result = easyjson.RawMessage(in.Raw())
		case "error":
			m.Error = new(Error)
			m.Error.UnmarshalEasyJSON(in)
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

// MarshalEasyJSON supports easyjson.Marshaler.
func (e Error) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"code":`)
	w.Int64(e.Code)
	w.RawByte(',')
	w.RawString(`"message":`)
	w.String(e.Message)
	if e.Data != nil {
		w.RawByte(',')
		w.RawString(`"data":`)
		e.Data.MarshalEasyJSON(w)
	}
	w.RawByte('}')
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler.
func (e *Error) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeString()
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "code":
			e.Code = in.Int64()
		case "message":
			e.Message = in.String()
		case "data":
			e.Data = easyjson.RawMessage(in.Raw())
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}
