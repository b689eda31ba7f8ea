// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package engine

import (
	"fmt"
	"strings"

	"github.com/skytable-core/skyd/internal/model"
)

// dispatchUser handles user administration, all of which is root-only:
//
//	user add <username> <password>
//	user del <username>
//	user list
func (e *Engine) dispatchUser(cc *ConnContext, args []string) Response {
	if !cc.IsRoot {
		return RespError(qerr(AuthPermDenied, "user administration requires root"))
	}
	if len(args) == 0 {
		return RespError(qerr(SyntaxErr, "user requires an action"))
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) != 3 {
			return RespError(qerr(SyntaxErr, "user add requires a username and a password"))
		}
		if err := e.SysDB.AddUser(args[1], args[2]); err != nil {
			return RespError(classify(err))
		}
		return RespOkay()

	case "del":
		if len(args) != 2 {
			return RespError(qerr(SyntaxErr, "user del requires a username"))
		}
		if err := e.SysDB.DelUser(args[1]); err != nil {
			return RespError(classify(err))
		}
		return RespOkay()

	case "list":
		names := e.SysDB.Users()
		vs := make([]model.Value, 0, len(names))
		for _, n := range names {
			vs = append(vs, model.NewString(n))
		}
		return RespArray(vs)

	default:
		return RespError(qerr(SyntaxErr, fmt.Sprintf("unknown user action %q", args[0])))
	}
}
