package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
)

// sessionRunner drives one connection through the protocol states:
// awaiting nickname, active, terminating, closed.
type sessionRunner struct {
	srv    *Server
	hub    *core.Hub
	sess   *core.Session
	reader *bufio.Reader
	log    zerolog.Logger
}

func newSessionRunner(srv *Server, sess *core.Session) *sessionRunner {
	return &sessionRunner{
		srv:    srv,
		hub:    srv.hub,
		sess:   sess,
		reader: bufio.NewReaderSize(sess.Conn(), 1024),
		log: srv.log.With().
			Str("session_id", sess.ID).
			Str("remote", sess.RemoteAddr()).
			Logger(),
	}
}

func (r *sessionRunner) run() {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("session crashed")
		}
		r.terminate()
	}()

	r.log.Debug().Msg("connection accepted")

	if err := r.handshake(); err != nil {
		r.log.Info().Err(err).Str("kind", core.KindOf(err).String()).Msg("handshake failed")
		return
	}

	err := r.loop()
	switch {
	case err == nil, errors.Is(err, io.EOF):
		r.log.Debug().Msg("session finished")
	case r.sess.State() == core.StateClosed:
		r.log.Debug().Err(err).Msg("session closed")
	default:
		r.log.Info().Err(err).Str("kind", core.KindOf(err).String()).Msg("session ended")
	}
}

// handshake reads the nickname line and registers the session.
func (r *sessionRunner) handshake() error {
	line, err := r.readLine()
	if err != nil {
		return err
	}
	nickname := strings.TrimSpace(line)

	if err := r.hub.Join(nickname, r.sess); err != nil {
		notice := core.NoticeInvalidNickname
		if errors.Is(err, core.ErrNicknameInUse) {
			notice = core.NoticeNicknameInUse
		}
		_ = r.sess.SendMessage(core.System(notice))
		return err
	}

	r.log = r.log.With().Str("nickname", nickname).Logger()
	for _, msg := range core.HelpNotices() {
		if err := r.sess.SendMessage(msg); err != nil {
			return err
		}
	}
	return nil
}

// loop handles lines of an active session until it quits or its transport fails.
func (r *sessionRunner) loop() error {
	for {
		line, err := r.readLine()
		if err != nil {
			return err
		}

		cmd := core.ParseLine(line)
		r.log.Debug().Stringer("command", cmd.Kind).Msg("line received")

		switch cmd.Kind {
		case core.CommandIgnore:
			continue
		case core.CommandQuit:
			_ = r.sess.SendMessage(core.System(core.NoticeClosing))
			return nil
		case core.CommandWhisperUsage:
			if err := r.sess.SendMessage(core.UsageNotice()); err != nil {
				return err
			}
		case core.CommandWhisper:
			if err := r.whisper(cmd); err != nil {
				return err
			}
		case core.CommandBroadcast:
			r.hub.Broadcast(r.sess, cmd.Text)
		default:
			return fmt.Errorf("unhandled command %v", cmd.Kind)
		}
	}
}

// whisper relays a private message. Only a failure to write to the sender
// itself ends the sender's session.
func (r *sessionRunner) whisper(cmd core.Command) error {
	if err := r.hub.Whisper(r.sess, cmd.Target, cmd.Text); err != nil {
		r.log.Debug().Err(err).Str("target", cmd.Target).Msg("whisper not delivered")
		return r.sess.SendMessage(core.System(core.NoticeTargetNotFound))
	}
	return r.sess.SendMessage(core.WhisperReceipt(r.sess.Nickname(), cmd.Target, cmd.Text))
}

// terminate removes the session, announces its departure if it was
// registered and closes the transport.
func (r *sessionRunner) terminate() {
	r.hub.Leave(r.sess)
	if err := r.sess.Close(); err != nil {
		r.log.Debug().Err(err).Msg("close connection")
	}
}

// readLine reads one newline-terminated line without its line ending.
func (r *sessionRunner) readLine() (string, error) {
	if timeout := r.srv.opts.IdleTimeout; timeout > 0 {
		if err := r.sess.Conn().SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return "", core.TransportError(err)
		}
	}

	var line []byte
	for {
		chunk, isPrefix, err := r.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", core.TransportError(err)
		}
		line = append(line, chunk...)
		if len(line) > r.srv.opts.MaxLineBytes {
			return "", core.TransportError(core.ErrLineTooLong)
		}
		if !isPrefix {
			return string(line), nil
		}
	}
}
