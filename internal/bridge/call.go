package bridge

// Operation names accepted by the dispatcher
const (
	MethodSetUp                = "setUp"
	MethodListen               = "listen"
	MethodCancel               = "cancel"
	MethodCreateFingerprint    = "createFingerprint"
	MethodRecognizeFingerprint = "recognizeFingerprint"
)

// Outbound event names
const (
	EventResult = "result"
	EventVolume = "volume"
)

// PermissionMicrophone is the capture permission requested before setUp
const PermissionMicrophone = "microphone"

// Call is a named operation request from the host
type Call struct {
	ID        string
	Method    string
	Arguments Arguments
}

// Reply answers exactly one Call. Exactly one of Result, Err and
// NotImplemented is meaningful.
type Reply struct {
	CallID         string
	Method         string
	Result         interface{}
	Err            *Error
	NotImplemented bool
}

// Event is an asynchronous message for the host
type Event struct {
	Method  string
	Payload interface{}
}

// Host is the other side of the bridge. The session invokes it from its own
// goroutine only, one call at a time.
type Host interface {
	Reply(reply Reply)
	Emit(event Event)
	RequestPermission(permission string)
}

func success(call Call, result interface{}) Reply {
	return Reply{CallID: call.ID, Method: call.Method, Result: result}
}

func failure(call Call, err *Error) Reply {
	return Reply{CallID: call.ID, Method: call.Method, Err: err}
}

func notImplemented(call Call) Reply {
	return Reply{CallID: call.ID, Method: call.Method, NotImplemented: true}
}
