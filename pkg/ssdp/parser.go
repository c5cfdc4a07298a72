/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ssdp

import (
	"bufio"
	"bytes"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
)

// Message is a parsed SSDP datagram. Request fields are set for NOTIFY and
// M-SEARCH, status fields for search responses.
type Message struct {
	Kind models.MessageKind

	Method string
	Target string
	Proto  string

	StatusCode int
	StatusText string

	// Headers maps lower-cased header names to their first value.
	Headers map[string]string
}

// Header returns the value of name, matched case-insensitively.
func (m *Message) Header(name string) string {
	if m == nil {
		return ""
	}

	return m.Headers[strings.ToLower(name)]
}

// IsSearch reports whether m is an M-SEARCH request, typically our own
// search looped back by the multicast group.
func (m *Message) IsSearch() bool {
	return m != nil && m.Kind == models.MessageKindRequest && m.Method == MethodMSearch
}

// Parser turns raw datagrams into messages.
type Parser struct {
	logger logger.Logger
}

// NewParser returns a Parser that reports oddities through log.
func NewParser(log logger.Logger) *Parser {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Parser{logger: log}
}

// Parse parses one datagram. It returns nil for anything that is not a
// complete NOTIFY, M-SEARCH or HTTP response header block.
func (p *Parser) Parse(data []byte) *Message {
	var msg *Message

	switch {
	case bytes.HasPrefix(data, []byte(MethodNotify)), bytes.HasPrefix(data, []byte(MethodMSearch)):
		msg = &Message{Kind: models.MessageKindRequest}
	case bytes.HasPrefix(data, []byte("HTTP/")):
		msg = &Message{Kind: models.MessageKindResponse}
	default:
		return nil
	}

	br := bufio.NewReaderSize(bytes.NewReader(data), len(data)+1)
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return nil
	}

	if msg.Kind == models.MessageKindRequest {
		if !parseRequestLine(line, msg) {
			return nil
		}
	} else if !parseStatusLine(line, msg) {
		return nil
	}

	// ReadMIMEHeader fails unless the block ends with an empty line.
	mime, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil
	}

	msg.Headers = make(map[string]string, len(mime))

	for key, values := range mime {
		if len(values) == 0 {
			continue
		}

		msg.Headers[strings.ToLower(key)] = values[0]
	}

	if n := br.Buffered(); n > 0 {
		p.logger.Debug().Int("bytes", n).Str("kind", string(msg.Kind)).
			Msg("Ignoring trailing bytes after SSDP header block")
	}

	return msg
}

func parseRequestLine(line string, msg *Message) bool {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return false
	}

	if parts[0] != MethodNotify && parts[0] != MethodMSearch {
		return false
	}

	proto := strings.TrimSpace(parts[2])
	if !strings.HasPrefix(proto, "HTTP/") {
		return false
	}

	msg.Method = parts[0]
	msg.Target = parts[1]
	msg.Proto = proto

	return true
}

func parseStatusLine(line string, msg *Message) bool {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return false
	}

	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 999 {
		return false
	}

	msg.Proto = parts[0]
	msg.StatusCode = code

	if len(parts) == 3 {
		msg.StatusText = strings.TrimSpace(parts[2])
	}

	return true
}
