package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

const maxDatagramSize = 4096

// UnixBus implements Bus over a directory of unix datagram sockets.
// Every instance binds <dir>/<instanceID>.sock; sending writes the
// message to every other socket in the directory. Sockets whose owner
// has exited are removed on the next send.
type UnixBus struct {
	dir        string
	instanceID string
	conn       *net.UnixConn
	ch         chan Message

	closeOnce sync.Once
	done      chan struct{}
}

// NewUnixBus binds this instance's socket and starts the reader.
func NewUnixBus(dir, instanceID string) (*UnixBus, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create broadcast dir: %w", err)
	}
	path := filepath.Join(dir, instanceID+".sock")
	// a previous run with the same id may have left its socket behind
	_ = os.Remove(path)
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind broadcast socket: %w", err)
	}
	b := &UnixBus{
		dir:        dir,
		instanceID: instanceID,
		conn:       conn,
		ch:         make(chan Message, 16),
		done:       make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

func (b *UnixBus) readLoop() {
	defer close(b.ch)
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := b.conn.ReadFromUnix(buf)
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(buf[:n], &msg); err != nil {
			continue
		}
		if msg.InstanceID == b.instanceID {
			continue
		}
		select {
		case b.ch <- msg:
		case <-b.done:
			return
		}
	}
}

// Send writes msg to every peer socket in the directory.
func (b *UnixBus) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("failed to list broadcast dir: %w", err)
	}
	own := b.instanceID + ".sock"
	for _, entry := range entries {
		name := entry.Name()
		if name == own || !strings.HasSuffix(name, ".sock") {
			continue
		}
		path := filepath.Join(b.dir, name)
		peer, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
		if err != nil {
			// only a vanished or unbound socket marks a dead instance;
			// transient dial failures must not unplug a live peer
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
				_ = os.Remove(path)
			}
			continue
		}
		_, _ = peer.Write(data)
		_ = peer.Close()
	}
	return nil
}

func (b *UnixBus) Receive() <-chan Message {
	return b.ch
}

func (b *UnixBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.conn.Close()
		_ = os.Remove(filepath.Join(b.dir, b.instanceID+".sock"))
	})
	return err
}
