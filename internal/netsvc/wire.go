// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package netsvc

import (
	"bufio"
	"fmt"

	"github.com/skytable-core/skyd/internal/engine"
	"github.com/skytable-core/skyd/internal/model"
)

// writeResponse serializes one engine.Response as a Skyhash v2 response
// frame: `+` strings, `:` numbers/booleans, `!` errors, `&` arrays/rows.
// `+` and `:` are "<prefix><len>\n<payload>\n"; `&` is "&<count>\n"
// followed by that many `+`/`:` frames; `!` carries just the decimal
// error code with no length prefix — success itself is framed as `!0\n`.
func writeResponse(w *bufio.Writer, resp engine.Response) error {
	switch resp.Kind {
	case engine.KindEmpty:
		return writeErrorCode(w, engine.Okay)
	case engine.KindError:
		return writeErrorCode(w, resp.Code)
	case engine.KindValue:
		return writeValue(w, resp.Value)
	case engine.KindRow:
		return writeRow(w, resp.Fields, resp.Values)
	case engine.KindArray:
		return writeArray(w, resp.Array)
	default:
		return fmt.Errorf("netsvc: unknown response kind %d", resp.Kind)
	}
}

func writeErrorCode(w *bufio.Writer, code engine.ErrorCode) error {
	_, err := fmt.Fprintf(w, "!%d\n", code)
	return err
}

func writeValue(w *bufio.Writer, v model.Value) error {
	if v.Tag() == model.TagString || v.Tag() == model.TagBinary {
		var payload string
		if v.Tag() == model.TagString {
			payload = v.String_()
		} else {
			payload = string(v.Binary())
		}
		_, err := fmt.Fprintf(w, "+%d\n%s\n", len(payload), payload)
		return err
	}
	s := v.String()
	_, err := fmt.Fprintf(w, ":%d\n%s\n", len(s), s)
	return err
}

// writeRow writes a row as an array twice the declared field count long:
// field name, value, field name, value, ...
func writeRow(w *bufio.Writer, fields []string, values []model.Value) error {
	if _, err := fmt.Fprintf(w, "&%d\n", 2*len(fields)); err != nil {
		return err
	}
	for i, name := range fields {
		if err := writeValue(w, model.NewString(name)); err != nil {
			return err
		}
		if err := writeValue(w, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeArray(w *bufio.Writer, vs []model.Value) error {
	if _, err := fmt.Fprintf(w, "&%d\n", len(vs)); err != nil {
		return err
	}
	for _, v := range vs {
		if err := writeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}
