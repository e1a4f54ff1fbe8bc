// The MIT License (MIT)
//
// Copyright (c) 2013-2017 Oryx(ossrs)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// Package rpcerror carries the RPC error taxonomy: a bare numeric Kind for
// when only the code matters, and a richer Error for when a human-readable
// message travels with it (the ERROR payload of an RPC response).
package rpcerror

import "fmt"

// Kind is an RPC error code. Values below UserCode are reserved for the
// errors defined here; callers may use UserCode and above for their own.
type Kind uint32

const (
	NoError              Kind = 0
	InvalidRequest       Kind = 1
	MethodNotFound       Kind = 2
	InvalidParam         Kind = 3
	InternalErr          Kind = 4
	ParseErr             Kind = 5
	MethodCallTimeout    Kind = 6
	MethodCallCancelled  Kind = 7
	MethodCallException  Kind = 8
	Unknown              Kind = 9
	LoginRequired        Kind = 10
	UserIDRequired       Kind = 11
	NotImplemented       Kind = 12
	UserCode             Kind = 32
)

func (k Kind) String() string {
	switch k {
	case NoError:
		return "NoError"
	case InvalidRequest:
		return "InvalidRequest"
	case MethodNotFound:
		return "MethodNotFound"
	case InvalidParam:
		return "InvalidParam"
	case InternalErr:
		return "InternalErr"
	case ParseErr:
		return "ParseErr"
	case MethodCallTimeout:
		return "MethodCallTimeout"
	case MethodCallCancelled:
		return "MethodCallCancelled"
	case MethodCallException:
		return "MethodCallException"
	case Unknown:
		return "Unknown"
	case LoginRequired:
		return "LoginRequired"
	case UserIDRequired:
		return "UserIDRequired"
	case NotImplemented:
		return "NotImplemented"
	default:
		if k >= UserCode {
			return fmt.Sprintf("UserError(%d)", uint32(k))
		}
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Error returns a bare Kind as an error, for callers that only care about
// the code (e.g. comparing against a sentinel with errors.Is-style checks).
func (k Kind) Error() string {
	return k.String()
}

// Error is an RPC error with a human-readable message attached, mirroring
// the two-tier SystemError/SystemComplexError split: Kind alone satisfies
// the error interface on its own, Error pairs it with Message.
type Error struct {
	Kind    Kind
	Message string
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return NoError.String()
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Message)
}
