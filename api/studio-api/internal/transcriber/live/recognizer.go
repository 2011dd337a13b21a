// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_transcriber_live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/studio/pkg/utils"
)

const (
	LISTEN_LANGUAGE = "listen.language"
	LISTEN_INTERIM  = "listen.interim"
	LISTEN_MODEL    = "listen.model"

	defaultLanguage   = "en-US"
	defaultSampleRate = 16000
)

type recognizerOption struct {
	endpoint string
	mdlOpts  utils.Option
}

func newRecognizerOption(endpoint string, opts utils.Option) (*recognizerOption, error) {
	if utils.IsEmpty(endpoint) {
		return nil, fmt.Errorf("live-stt: recognizer endpoint is not configured")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("live-stt: invalid recognizer endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("live-stt: recognizer endpoint must be ws or wss, got %q", u.Scheme)
	}
	if opts == nil {
		opts = utils.Option{}
	}
	return &recognizerOption{endpoint: endpoint, mdlOpts: opts}, nil
}

// GetConnectionString is the recognizer url with the stream parameters in the query.
func (o *recognizerOption) GetConnectionString() string {
	params := url.Values{}
	params.Add("encoding", "pcm_s16le")
	params.Add("sample_rate", strconv.Itoa(defaultSampleRate))
	params.Add("channels", "1")
	params.Add("continuous", "true")

	language := defaultLanguage
	if v, err := o.mdlOpts.GetString(LISTEN_LANGUAGE); err == nil && v != "" {
		language = v
	}
	params.Add("language", language)

	interim := true
	if v, err := o.mdlOpts.GetBool(LISTEN_INTERIM); err == nil {
		interim = v
	}
	params.Add("interim_results", strconv.FormatBool(interim))

	if v, err := o.mdlOpts.GetString(LISTEN_MODEL); err == nil && v != "" {
		params.Add("model", v)
	}

	u, _ := url.Parse(o.endpoint)
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RecognizerMessage is one JSON frame sent by the recognizer.
type RecognizerMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text,omitempty"`
	IsFinal    bool    `json:"is_final,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
	Code       string  `json:"code,omitempty"`
}

const (
	MessageResult = "result"
	MessageError  = "error"
	MessageEnd    = "end"
)

// fatalCodes end the session instead of triggering a restart.
var fatalCodes = map[string]bool{
	"not-allowed":            true,
	"service-not-allowed":    true,
	"language-not-supported": true,
	"audio-capture":          true,
}

func IsFatal(code string) bool {
	return fatalCodes[code]
}

// Conn is one recognition session on the wire.
type Conn interface {
	WriteAudio(b []byte) error
	Read() (RecognizerMessage, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type websocketDialer struct {
	dialer *websocket.Dialer
}

func NewWebsocketDialer() Dialer {
	return &websocketDialer{dialer: websocket.DefaultDialer}
}

func (d *websocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
	once    sync.Once
}

func (c *websocketConn) WriteAudio(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (c *websocketConn) Read() (RecognizerMessage, error) {
	var msg RecognizerMessage
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	// frames that are not recognizer json are skipped
	if err := json.Unmarshal(raw, &msg); err != nil {
		return RecognizerMessage{}, nil
	}
	return msg, nil
}

func (c *websocketConn) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
