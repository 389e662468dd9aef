package tcprest

import (
	"fmt"
	"runtime/debug"
)

// recoverInvocationPanic turns a panic raised by a reflectively-invoked
// resource method into a *RemoteError the dispatcher can encode, instead of
// taking the whole process down. Go has no NullPointerException, but user
// resource code can still panic (nil map write, index out of range, a nil
// interface method call); those failures classify as server errors like any
// other user-code fault.
//
// outErr must point at the caller's named return (e.g. &outcome.Err):
// when Call itself panics, control never reaches any statement after the
// call, so the only way to classify the outcome is for the deferred
// recover to write the named return directly.
func recoverInvocationPanic(remoteType string, outErr **RemoteError) {
	if x := recover(); x != nil {
		log.Error(fmt.Sprintf("run time panic in invoked method: %v", x))
		log.Debug(string(debug.Stack()))
		*outErr = ServerErrorFrom(remoteType, fmt.Errorf("%v", x))
	}
}
