package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/entities"
	"github.com/satriahrh/acrbridge/domain/repositories"
)

const (
	inboxSize     = 64
	recordTimeout = 5 * time.Second
)

// Default audio format of createFingerprint
const (
	DefaultFingerprintSampleRate = 16000
	DefaultFingerprintChannels   = 2
)

// HistoryRecorder persists recognition payloads delivered to the host
type HistoryRecorder interface {
	Record(ctx context.Context, deviceID, sessionID string, source entities.RecognitionSource, payload string) error
}

// SessionOptions configures a Session
type SessionOptions struct {
	DeviceID string
	// RequirePermission makes setUp wait for a microphone grant from the host
	RequirePermission bool
	// History is optional
	History HistoryRecorder
}

type permissionAnswer struct {
	granted bool
}

type audioFrame struct {
	pcm []byte
}

type completion struct {
	reply   Reply
	payload string
	record  bool
}

// Session is the bridge dispatcher of one host connection. All session state
// is owned by the goroutine started by Start; the exported methods only post
// messages to it.
type Session struct {
	id            string
	deviceID      string
	host          Host
	factory       repositories.RecognitionClientFactory
	fingerprinter repositories.Fingerprinter
	history       HistoryRecorder
	logger        *zap.Logger

	gate       *PermissionGate
	relay      *Relay
	config     *entities.SessionConfig
	client     repositories.RecognitionClient
	generation uint64
	recording  uint64
	listening  bool

	inbox     chan interface{}
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
}

// NewSession creates a session bound to a host
func NewSession(
	host Host,
	factory repositories.RecognitionClientFactory,
	fingerprinter repositories.Fingerprinter,
	opts SessionOptions,
	logger *zap.Logger,
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	return &Session{
		id:            id,
		deviceID:      opts.DeviceID,
		host:          host,
		factory:       factory,
		fingerprinter: fingerprinter,
		history:       opts.History,
		logger:        logger.With(zap.String("sessionID", id), zap.String("deviceID", opts.DeviceID)),
		gate:          NewPermissionGate(!opts.RequirePermission),
		relay:         NewRelay(defaultRelayBuffer),
		inbox:         make(chan interface{}, inboxSize),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Start runs the session loop in a new goroutine
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Close stops the loop, ends any recording and releases the client
func (s *Session) Close() {
	s.cancel()
	s.startOnce.Do(func() {
		close(s.done)
	})
	<-s.done
}

// Dispatch queues a call. It returns false once the session is closed.
func (s *Session) Dispatch(call Call) bool {
	return s.enqueue(call)
}

// ResolvePermission delivers the host's answer to a permission request
func (s *Session) ResolvePermission(granted bool) bool {
	return s.enqueue(permissionAnswer{granted: granted})
}

// WriteAudio forwards captured PCM to the recognition client while listening
func (s *Session) WriteAudio(pcm []byte) bool {
	return s.enqueue(audioFrame{pcm: pcm})
}

func (s *Session) enqueue(msg interface{}) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	select {
	case s.inbox <- msg:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer s.teardown()

	s.logger.Info("Bridge session started")
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.inbox:
			s.handle(msg)
		case event := <-s.relay.Events():
			s.handleEvent(event)
		}
	}
}

func (s *Session) handle(msg interface{}) {
	switch m := msg.(type) {
	case Call:
		s.handleCall(m)
	case permissionAnswer:
		s.handlePermission(m.granted)
	case audioFrame:
		s.handleAudio(m.pcm)
	case completion:
		s.host.Reply(m.reply)
		if m.record {
			s.record(entities.RecognitionSourceFingerprint, m.payload)
		}
	default:
		s.logger.Warn("Dropping unknown session message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (s *Session) handleCall(call Call) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic in bridge call",
				zap.String("method", call.Method),
				zap.Any("panic", r))
			s.host.Reply(failure(call, NewError(failureCodes[call.Method], "internal failure: %v", r)))
		}
	}()

	s.logger.Debug("Handling call", zap.String("method", call.Method), zap.String("callID", call.ID))

	switch call.Method {
	case MethodSetUp:
		s.handleSetUp(call)
	case MethodListen:
		s.host.Reply(s.listen(call))
	case MethodCancel:
		s.host.Reply(s.cancelListening(call))
	case MethodCreateFingerprint:
		s.createFingerprint(call)
	case MethodRecognizeFingerprint:
		s.recognizeFingerprint(call)
	default:
		s.logger.Warn("Method not implemented", zap.String("method", call.Method))
		s.host.Reply(notImplemented(call))
	}
}

func (s *Session) handleSetUp(call Call) {
	config, err := parseSessionConfig(call.Arguments)
	if err != nil {
		s.host.Reply(failure(call, err))
		return
	}

	if !s.gate.Granted() {
		if err := s.gate.Defer(call); err != nil {
			s.host.Reply(failure(call, NewError(CodePermissionPending, "%s", err.Error())))
			return
		}
		s.logger.Info("Deferring setUp until microphone permission is granted")
		s.host.RequestPermission(PermissionMicrophone)
		return
	}

	s.host.Reply(s.setUp(call, config))
}

func (s *Session) setUp(call Call, config entities.SessionConfig) Reply {
	s.releaseClient()

	s.generation++
	client, err := s.factory.NewClient(config, s.relay.Listener(s.generation))
	if err != nil {
		s.logger.Error("Failed to create recognition client", zap.Error(err))
		return failure(call, NewError(CodeSetUpFailed, "failed to create recognition client: %v", err))
	}

	s.config = &config
	s.client = client
	s.logger.Info("Recognition client set up",
		zap.String("host", config.Host),
		zap.String("protocol", string(config.Protocol)),
		zap.Int("sampleRate", config.SampleRate),
		zap.Int("channels", config.Channels))
	return success(call, true)
}

func (s *Session) handlePermission(granted bool) {
	call, ok := s.gate.Resolve(granted)
	s.logger.Info("Microphone permission answered", zap.Bool("granted", granted), zap.Bool("pending", ok))
	if !ok {
		return
	}
	if !granted {
		s.host.Reply(failure(call, NewError(CodePermissionDenied, "microphone permission denied")))
		return
	}
	s.handleCall(call)
}

func (s *Session) listen(call Call) Reply {
	if s.client == nil {
		return failure(call, NewError(CodeNotSetUp, "setUp must be called before listen"))
	}
	if s.listening {
		return failure(call, NewError(CodeAlreadyListening, "Already listening"))
	}
	s.recording = s.relay.BeginRecording()
	if err := s.client.StartRecording(s.ctx); err != nil {
		s.logger.Error("Failed to start recording", zap.Error(err))
		return failure(call, NewError(CodeRecordingError, "failed to start recording: %v", err))
	}

	s.listening = true
	return success(call, true)
}

func (s *Session) cancelListening(call Call) Reply {
	if !s.listening {
		return failure(call, NewError(CodeNotListening, "Not listening, so nothing to cancel."))
	}
	s.client.StopRecording()
	s.listening = false
	return success(call, true)
}

func (s *Session) createFingerprint(call Call) {
	pcm, ok, err := call.Arguments.Bytes("pcmData")
	if err != nil {
		s.host.Reply(failure(call, NewError(CodeInvalidArgument, "%s", err.Error())))
		return
	}
	if !ok {
		s.host.Reply(failure(call, NewError(CodeUnavailable, "Empty Byte Data")))
		return
	}
	sampleRate, err := call.Arguments.Int("sampleRate", DefaultFingerprintSampleRate)
	if err != nil {
		s.host.Reply(failure(call, NewError(CodeInvalidArgument, "%s", err.Error())))
		return
	}
	channels, err := call.Arguments.Int("channels", DefaultFingerprintChannels)
	if err != nil {
		s.host.Reply(failure(call, NewError(CodeInvalidArgument, "%s", err.Error())))
		return
	}
	if err := entities.ValidateAudioFormat(sampleRate, channels); err != nil {
		s.host.Reply(failure(call, NewError(CodeInvalidArgument, "%s", err.Error())))
		return
	}
	if s.fingerprinter == nil {
		s.host.Reply(failure(call, NewError(CodeFingerprintError, "fingerprinting is not available")))
		return
	}

	fingerprinter := s.fingerprinter
	s.async(call, func(ctx context.Context) completion {
		fingerprint, err := fingerprinter.CreateFingerprint(ctx, pcm, sampleRate, channels)
		if err != nil {
			s.logger.Warn("Failed to create fingerprint", zap.Error(err))
			return completion{reply: failure(call, NewError(CodeFingerprintError, "Failed to create fingerprint: %v", err))}
		}
		if len(fingerprint) == 0 {
			return completion{reply: failure(call, NewError(CodeFingerprintError, "Failed to create fingerprint"))}
		}
		return completion{reply: success(call, fingerprint)}
	})
}

func (s *Session) recognizeFingerprint(call Call) {
	fingerprint, ok, err := call.Arguments.Bytes("fingerprint")
	if err != nil {
		s.host.Reply(failure(call, NewError(CodeInvalidArgument, "%s", err.Error())))
		return
	}
	if !ok {
		s.host.Reply(failure(call, NewError(CodeUnavailable, "Empty Fingerprint Data")))
		return
	}
	if s.client == nil {
		s.host.Reply(failure(call, NewError(CodeNotSetUp, "setUp must be called before recognizeFingerprint")))
		return
	}

	client := s.client
	s.async(call, func(ctx context.Context) completion {
		result, err := client.RecognizeFingerprint(ctx, fingerprint)
		if err != nil {
			s.logger.Warn("Fingerprint recognition failed", zap.Error(err))
			return completion{reply: failure(call, NewError(CodeRecognitionError, "recognition failed: %v", err))}
		}
		return completion{reply: success(call, result), payload: result, record: true}
	})
}

// async runs a vendor call off the session goroutine and posts its reply back
func (s *Session) async(call Call, fn func(ctx context.Context) completion) {
	go func() {
		var result completion
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Recovered panic in vendor call",
						zap.String("method", call.Method),
						zap.Any("panic", r))
					result = completion{reply: failure(call, NewError(failureCodes[call.Method], "internal failure: %v", r))}
				}
			}()
			result = fn(s.ctx)
		}()
		s.enqueue(result)
	}()
}

func (s *Session) handleAudio(pcm []byte) {
	if !s.listening || s.client == nil {
		return
	}
	if err := s.client.WriteAudio(pcm); err != nil {
		s.logger.Warn("Failed to write audio", zap.Error(err))
	}
}

func (s *Session) handleEvent(event VendorEvent) {
	if event.Generation != s.generation || s.client == nil {
		s.logger.Debug("Dropping event from a replaced client",
			zap.String("event", event.Method),
			zap.Uint64("generation", event.Generation))
		return
	}

	switch event.Method {
	case EventResult:
		if event.Recording != s.recording {
			s.logger.Debug("Dropping result of an earlier recording",
				zap.Uint64("recording", event.Recording),
				zap.Uint64("current", s.recording))
			return
		}
		if s.listening {
			s.client.StopRecording()
			s.listening = false
		}
		s.host.Emit(Event{Method: EventResult, Payload: event.Result})
		s.record(entities.RecognitionSourceListen, event.Result)
	case EventVolume:
		s.host.Emit(Event{Method: EventVolume, Payload: event.Volume})
	}
}

func (s *Session) record(source entities.RecognitionSource, payload string) {
	if s.history == nil {
		return
	}
	deviceID, sessionID := s.deviceID, s.id
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.history.Record(ctx, deviceID, sessionID, source, payload); err != nil {
			s.logger.Error("Failed to record recognition", zap.Error(err))
		}
	}()
}

// releaseClient stops and closes the current client, if any
func (s *Session) releaseClient() {
	if s.client == nil {
		return
	}
	if s.listening {
		s.client.StopRecording()
		s.listening = false
	}
	if err := s.client.Close(); err != nil {
		s.logger.Warn("Failed to close recognition client", zap.Error(err))
	}
	s.client = nil
	s.config = nil
}

func (s *Session) teardown() {
	if _, ok := s.gate.Drop(); ok {
		s.logger.Info("Dropping setUp waiting for permission")
	}
	s.releaseClient()
	s.relay.Close()
	s.logger.Info("Bridge session closed")
}

// parseSessionConfig builds the config of a setUp call
func parseSessionConfig(args Arguments) (entities.SessionConfig, *Error) {
	var required [3]string
	for i, key := range []string{"accessKey", "accessSecret", "host"} {
		value, ok, err := args.String(key)
		if err != nil {
			return entities.SessionConfig{}, NewError(CodeInvalidArgument, "%s", err.Error())
		}
		if !ok || value == "" {
			return entities.SessionConfig{}, NewError(CodeInvalidArgument, "%s is required", key)
		}
		required[i] = value
	}

	config := entities.NewSessionConfig(required[0], required[1], required[2])

	protocol, _, err := args.String("protocol")
	if err != nil {
		return entities.SessionConfig{}, NewError(CodeInvalidArgument, "%s", err.Error())
	}
	if config.Protocol, err = entities.ParseProtocol(protocol); err != nil {
		return entities.SessionConfig{}, NewError(CodeInvalidArgument, "%s", err.Error())
	}
	if config.SampleRate, err = args.Int("sampleRate", entities.DefaultRecorderSampleRate); err != nil {
		return entities.SessionConfig{}, NewError(CodeInvalidArgument, "%s", err.Error())
	}
	if config.Channels, err = args.Int("channels", entities.DefaultRecorderChannels); err != nil {
		return entities.SessionConfig{}, NewError(CodeInvalidArgument, "%s", err.Error())
	}
	timeoutMs, err := args.Int("requestTimeout", int(entities.DefaultRequestTimeout/time.Millisecond))
	if err != nil {
		return entities.SessionConfig{}, NewError(CodeInvalidArgument, "%s", err.Error())
	}
	config.RequestTimeout = time.Duration(timeoutMs) * time.Millisecond

	if err := config.Validate(); err != nil {
		return entities.SessionConfig{}, NewError(CodeInvalidArgument, "%s", err.Error())
	}
	return config, nil
}
