package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxFrameBytes = 64 * 1024

// CaptureConn adapts one widget connection into an audio frame source for
// speaker mode. The widget captures the microphone and streams PCM16 frames
// as binary messages; the daemon cannot open audio input devices itself.
type CaptureConn struct {
	conn   *websocket.Conn
	frames chan []byte
	done   chan struct{}
	logger *zap.Logger
	once   sync.Once
}

// HandleCapture upgrades the request into a capture connection. The caller
// owns the connection and must run Pump to drain it.
func HandleCapture(c echo.Context, logger *zap.Logger) (*CaptureConn, error) {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("Capture upgrade failed", zap.Error(err))
		return nil, err
	}
	return &CaptureConn{
		conn:   conn,
		frames: make(chan []byte, 32),
		done:   make(chan struct{}),
		logger: logger,
	}, nil
}

// Frames delivers captured audio frames until the peer disconnects.
func (cc *CaptureConn) Frames() <-chan []byte {
	return cc.frames
}

// Close tears the connection down. Safe to call more than once.
func (cc *CaptureConn) Close() error {
	var err error
	cc.once.Do(func() {
		close(cc.done)
		err = cc.conn.Close()
	})
	return err
}

// Pump reads frames off the connection until the peer closes or Close is
// called. It blocks the caller; text messages are ignored.
func (cc *CaptureConn) Pump() {
	defer close(cc.frames)
	cc.conn.SetReadLimit(maxFrameBytes)

	for {
		messageType, payload, err := cc.conn.ReadMessage()
		if err != nil {
			select {
			case <-cc.done:
			default:
				cc.logger.Debug("Capture connection closed", zap.Error(err))
			}
			return
		}
		if messageType != websocket.BinaryMessage || len(payload) == 0 {
			continue
		}
		select {
		case cc.frames <- payload:
		case <-cc.done:
			return
		}
	}
}
