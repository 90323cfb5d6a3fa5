// Command tidelog-cli is a thin client for the broker's wire protocol. It
// takes a command in the pipe-delimited text form, translates it to the
// binary framing, sends it over TCP, and prints the decoded response.
//
// Usage:
//
//	tidelog-cli [-addr host:port] [-tls] <command> [payload]
//
//	tidelog-cli ping
//	tidelog-cli create_stream "1|orders"
//	tidelog-cli create_topic "1|1|4|events"
//	tidelog-cli send "1|1|partition_id|1|<id_hex>:<payload_hex>"
//	tidelog-cli poll "1|1|1|first|0|10|consumer|0|false"
//
// Exit code is 0 on success and 1 on any error.
package main

import (
	"bytes"
	"crypto/tls"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/FairForge/tidelog/internal/protocol"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tidelog-cli:", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "127.0.0.1:8477", "broker TCP address")
	useTLS := flag.Bool("tls", false, "connect over TLS")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: tidelog-cli [flags] <command> [payload]")
	}
	name := args[0]
	text := ""
	if len(args) > 1 {
		text = args[1]
	}

	code, ok := protocol.ParseCommandName(name)
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	payload, err := encodePayload(code, text)
	if err != nil {
		return fmt.Errorf("parse %s payload: %w", name, err)
	}

	conn, err := dial(*addr, *useTLS, *insecure, *timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(*timeout))

	frame := append([]byte{byte(code)}, payload...)
	if err := protocol.WriteFrame(conn, frame); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	resp, err := protocol.ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	return printResponse(code, resp)
}

func dial(addr string, useTLS, insecure bool, timeout time.Duration) (net.Conn, error) {
	if useTLS {
		dialer := &net.Dialer{Timeout: timeout}
		return tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{InsecureSkipVerify: insecure})
	}
	return net.DialTimeout("tcp", addr, timeout)
}

// encodePayload parses the text form of the named command and renders its
// binary payload. Commands with no payload accept an empty string.
func encodePayload(code protocol.CommandCode, text string) ([]byte, error) {
	switch code {
	case protocol.CmdPing, protocol.CmdGetStreams, protocol.CmdGetClients, protocol.CmdGetMe:
		return nil, nil

	case protocol.CmdPoll:
		cmd, err := protocol.ParsePoll(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodePoll(*cmd), nil

	case protocol.CmdSend:
		cmd, err := protocol.ParseSend(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeSend(*cmd), nil

	case protocol.CmdCreateStream:
		cmd, err := protocol.ParseCreateStream(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeCreateStream(*cmd), nil

	case protocol.CmdDeleteStream, protocol.CmdGetStream, protocol.CmdGetTopics:
		cmd, err := protocol.ParseStreamCommand(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeStreamCommand(*cmd), nil

	case protocol.CmdCreateTopic:
		cmd, err := protocol.ParseCreateTopic(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeCreateTopic(*cmd), nil

	case protocol.CmdDeleteTopic, protocol.CmdGetTopic:
		cmd, err := protocol.ParseTopicCommand(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeTopicCommand(*cmd), nil

	case protocol.CmdStoreOffset, protocol.CmdGetOffset:
		cmd, err := protocol.ParseOffsetCommand(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeOffsetCommand(*cmd), nil

	case protocol.CmdCreateGroup, protocol.CmdDeleteGroup, protocol.CmdGetGroup:
		cmd, err := protocol.ParseGroupCommand(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeGroupCommand(*cmd), nil

	case protocol.CmdJoinGroup, protocol.CmdLeaveGroup:
		cmd, err := protocol.ParseGroupMemberCommand(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeGroupMemberCommand(*cmd), nil

	case protocol.CmdGetClient, protocol.CmdKill:
		cmd, err := protocol.ParseClientCommand(text)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeClientCommand(*cmd), nil

	default:
		return nil, fmt.Errorf("command %s has no text form", code)
	}
}

// printResponse decodes the response for the given command and prints it.
// Any non-OK status is an error, which main maps to exit code 1.
func printResponse(code protocol.CommandCode, resp []byte) error {
	if len(resp) == 0 {
		return fmt.Errorf("empty response")
	}
	if resp[0] != protocol.StatusOK {
		return fmt.Errorf("error status %d", resp[0])
	}

	switch code {
	case protocol.CmdPoll:
		_, msgs, err := protocol.DecodePollResponse(bytes.NewReader(resp))
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Printf("%d message(s)\n", len(msgs))
		for _, m := range msgs {
			fmt.Printf("offset=%d timestamp=%d id=%s payload=%q\n",
				m.Offset, m.Timestamp, hex.EncodeToString(m.ID[:]), m.Payload)
		}

	case protocol.CmdSend:
		_, partitionID, firstOffset, err := protocol.DecodeSendResponse(bytes.NewReader(resp))
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Printf("ok partition=%d first_offset=%d\n", partitionID, firstOffset)

	case protocol.CmdGetOffset:
		_, found, offset, err := protocol.DecodeGetOffsetResponse(bytes.NewReader(resp))
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if found {
			fmt.Printf("offset=%d\n", offset)
		} else {
			fmt.Println("no stored offset")
		}

	case protocol.CmdGetStream:
		cmd, err := protocol.DecodeCreateStream(bytes.NewReader(resp[1:]))
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Println(protocol.FormatCreateStream(*cmd))

	case protocol.CmdGetTopic:
		cmd, err := protocol.DecodeCreateTopic(bytes.NewReader(resp[1:]))
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Println(protocol.FormatCreateTopic(*cmd))

	default:
		if len(resp) > 1 {
			fmt.Printf("ok (%d payload bytes)\n", len(resp)-1)
		} else {
			fmt.Println("ok")
		}
	}
	return nil
}
