// Package broker wires the wire codec (internal/protocol) to the storage
// and dispatch engine (internal/streaming): it decodes a command frame,
// calls the matching *streaming.System operation, and encodes the
// response, the way the teacher's api/routes.go maps an HTTP route to an
// engine call and a JSON response, generalized from HTTP verbs to the
// broker's one-byte command codes.
package broker

import (
	"bytes"

	"github.com/FairForge/tidelog/internal/protocol"
	"github.com/FairForge/tidelog/internal/registry"
	"github.com/FairForge/tidelog/internal/streaming"
	"go.uber.org/zap"
)

// MetricsSink receives per-operation observations the dispatcher emits,
// satisfied by *adminapi.Metrics without broker importing adminapi
// (adminapi already imports streaming; broker avoiding the reverse edge
// keeps the dependency graph acyclic).
type MetricsSink interface {
	ObserveAppend(stream, topic string, messages, bytes int, seconds float64)
	ObservePoll(stream, topic string, seconds float64)
	ObserveSegmentRoll(stream, topic string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveAppend(string, string, int, int, float64) {}
func (noopMetrics) ObservePoll(string, string, float64)             {}
func (noopMetrics) ObserveSegmentRoll(string, string)               {}

// Dispatcher turns decoded command frames into engine calls. One Dispatcher
// is shared across every connection; state for a specific connection (its
// assigned client id) is passed into Dispatch per call.
type Dispatcher struct {
	system  *streaming.System
	logger  *zap.Logger
	metrics MetricsSink
}

// New builds a Dispatcher over an already-initialized engine.
func New(system *streaming.System, logger *zap.Logger, metrics MetricsSink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Dispatcher{system: system, logger: logger, metrics: metrics}
}

// Connect registers a new connection and returns its registry entry, whose
// ID is the assigned client id.
func (d *Dispatcher) Connect(address string) *registry.Client {
	return d.system.Connect(address)
}

// Disconnect tears down a connection's registry entry and group
// memberships. Errors are swallowed: disconnect runs from defer/cleanup
// paths where there is no one left to report to.
func (d *Dispatcher) Disconnect(clientID uint32) {
	_ = d.system.Disconnect(clientID)
}

// Dispatch decodes one command frame (command byte + payload), invokes the
// matching engine operation on behalf of clientID, and returns the encoded
// response frame. A frame that fails to parse, or whose command byte is
// unrecognized, yields a one-byte InvalidCommand/InvalidFormat response
// rather than an error — the connection stays open per §7's propagation
// policy.
func (d *Dispatcher) Dispatch(clientID uint32, frame []byte) []byte {
	code, body, err := protocol.ReadCommand(frame)
	if err != nil {
		return protocol.EncodeStatus(protocol.StatusFor(err))
	}
	r := bytes.NewReader(body)

	switch code {
	case protocol.CmdPing:
		d.system.Ping()
		return protocol.EncodeStatus(protocol.StatusOK)

	case protocol.CmdPoll:
		return d.handlePoll(clientID, r)

	case protocol.CmdSend:
		return d.handleSend(r)

	case protocol.CmdCreateStream:
		cmd, err := protocol.DecodeCreateStream(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		_, err = d.system.CreateStream(cmd.StreamID, cmd.Name)
		return protocol.EncodeStatus(protocol.StatusFor(err))

	case protocol.CmdDeleteStream:
		cmd, err := protocol.DecodeStreamCommand(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		return protocol.EncodeStatus(protocol.StatusFor(d.system.DeleteStream(cmd.StreamID)))

	case protocol.CmdGetStream:
		return d.handleGetStream(r)

	case protocol.CmdGetStreams:
		return d.handleGetStreams()

	case protocol.CmdCreateTopic:
		cmd, err := protocol.DecodeCreateTopic(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		_, err = d.system.CreateTopic(cmd.StreamID, cmd.TopicID, cmd.Name, cmd.PartitionsCount)
		return protocol.EncodeStatus(protocol.StatusFor(err))

	case protocol.CmdDeleteTopic:
		cmd, err := protocol.DecodeTopicCommand(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		return protocol.EncodeStatus(protocol.StatusFor(d.system.DeleteTopic(cmd.StreamID, cmd.TopicID)))

	case protocol.CmdGetTopic:
		return d.handleGetTopic(r)

	case protocol.CmdGetTopics:
		return d.handleGetTopics(r)

	case protocol.CmdStoreOffset:
		cmd, err := protocol.DecodeOffsetCommand(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		err = d.system.StoreOffset(cmd.StreamID, cmd.TopicID, cmd.PartitionID, consumerKindOf(cmd.ConsumerKind), cmd.ConsumerID, cmd.Offset)
		return protocol.EncodeStatus(protocol.StatusFor(err))

	case protocol.CmdGetOffset:
		return d.handleGetOffset(r)

	case protocol.CmdCreateGroup:
		cmd, err := protocol.DecodeGroupCommand(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		_, err = d.system.CreateGroup(cmd.StreamID, cmd.TopicID, cmd.GroupID)
		return protocol.EncodeStatus(protocol.StatusFor(err))

	case protocol.CmdDeleteGroup:
		cmd, err := protocol.DecodeGroupCommand(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		return protocol.EncodeStatus(protocol.StatusFor(d.system.DeleteGroup(cmd.StreamID, cmd.TopicID, cmd.GroupID)))

	case protocol.CmdGetGroup:
		return d.handleGetGroup(r)

	case protocol.CmdJoinGroup:
		cmd, err := protocol.DecodeGroupMemberCommand(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		return protocol.EncodeStatus(protocol.StatusFor(d.system.JoinGroup(cmd.StreamID, cmd.TopicID, cmd.GroupID, cmd.ClientID)))

	case protocol.CmdLeaveGroup:
		cmd, err := protocol.DecodeGroupMemberCommand(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		return protocol.EncodeStatus(protocol.StatusFor(d.system.LeaveGroup(cmd.StreamID, cmd.TopicID, cmd.GroupID, cmd.ClientID)))

	case protocol.CmdGetMe:
		return d.handleGetClient(clientID)

	case protocol.CmdGetClient:
		cmd, err := protocol.DecodeClientCommand(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		return d.handleGetClient(cmd.ClientID)

	case protocol.CmdGetClients:
		return d.handleGetClients()

	case protocol.CmdKill:
		cmd, err := protocol.DecodeClientCommand(r)
		if err != nil {
			return protocol.EncodeStatus(protocol.StatusFor(err))
		}
		return protocol.EncodeStatus(protocol.StatusFor(d.system.Kill(cmd.ClientID)))

	default:
		return protocol.EncodeStatus(protocol.StatusFor(protocol.ErrInvalidCommand))
	}
}

func consumerKindOf(k protocol.ConsumerKindWire) streaming.ConsumerKind {
	if k == protocol.ConsumerWireGroup {
		return streaming.ConsumerKindGroup
	}
	return streaming.ConsumerKindConsumer
}

func keyKindOf(k protocol.KeyKindWire) streaming.KeyKind {
	switch k {
	case protocol.KeyWirePartitionID:
		return streaming.KeyKindPartitionID
	case protocol.KeyWireEntityID:
		return streaming.KeyKindEntityID
	default:
		return streaming.KeyKindNone
	}
}

func pollKindOf(k protocol.PollKindWire) streaming.PollKind {
	switch k {
	case protocol.PollWireLast:
		return streaming.PollLast
	case protocol.PollWireNext:
		return streaming.PollNext
	case protocol.PollWireOffset:
		return streaming.PollOffset
	case protocol.PollWireTimestamp:
		return streaming.PollTimestamp
	default:
		return streaming.PollFirst
	}
}
