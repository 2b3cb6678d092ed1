package session

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
)

// maxReplayBody — сколько байт тела без GetBody запоминается для повтора после 401.
const maxReplayBody = 1 << 20

// replayChunk — размер порции при дочитывании остатка тела перед повтором.
const replayChunk = 32 << 10

// requestBody — тело запроса вызывающего на время Do.
//
// Тело с GetBody каждая попытка получает заново. Остальные тела первая попытка отправляет
// потоком через recordingBody, а повтор идёт из записанной копии.
type requestBody struct {
	getBody func() (io.ReadCloser, error)
	rec     *recordingBody
}

func newRequestBody(req *http.Request, limit int) *requestBody {
	switch {
	case req.Body == nil || req.Body == http.NoBody:
		return &requestBody{}
	case req.GetBody != nil:
		return &requestBody{getBody: req.GetBody}
	}

	return &requestBody{rec: &recordingBody{src: req.Body, limit: limit}}
}

// attach подставляет тело попытки в клон запроса.
func (b *requestBody) attach(out *http.Request) error {
	switch {
	case b.getBody != nil:
		rc, err := b.getBody()
		if err != nil {
			return err
		}
		out.Body, out.GetBody = rc, b.getBody
	case b.rec != nil:
		// Транспорт не должен перечитывать частично отправленный поток.
		out.Body, out.GetBody = b.rec, nil
	}

	return nil
}

// rewind готовит тело к повтору: дочитывает остаток потока и переключается на копию.
func (b *requestBody) rewind() error {
	if b.rec == nil {
		return nil
	}

	getBody, err := b.rec.replay()
	if err != nil {
		return err
	}
	b.getBody = getBody

	return nil
}

func (b *requestBody) readErr() error {
	if b.rec == nil {
		return nil
	}

	return b.rec.readErr()
}

func (b *requestBody) close() {
	if b.rec != nil {
		_ = b.rec.src.Close()
	}
}

// recordingBody отдаёт транспорту поток src и попутно копирует не больше limit байт.
// Close транспорта источник не закрывает: после 401 остаток ещё нужен для повтора.
type recordingBody struct {
	mu       sync.Mutex
	src      io.ReadCloser
	limit    int
	buf      bytes.Buffer
	overflow bool
	eof      bool
	err      error
}

func (b *recordingBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.eof {
		return 0, io.EOF
	}

	n, err := b.src.Read(p)
	b.observe(p[:n], err)

	return n, err
}

func (b *recordingBody) Close() error { return nil }

func (b *recordingBody) observe(p []byte, err error) {
	if !b.overflow {
		if b.buf.Len()+len(p) > b.limit {
			b.overflow = true
			b.buf = bytes.Buffer{}
		} else {
			b.buf.Write(p)
		}
	}

	switch {
	case errors.Is(err, io.EOF):
		b.eof = true
	case err != nil:
		b.err = err
	}
}

func (b *recordingBody) readErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.err
}

// replay возвращает фабрику копии тела. Тело длиннее limit повторить нельзя: ErrBodyNotReplayable.
func (b *recordingBody) replay() (func() (io.ReadCloser, error), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chunk := make([]byte, replayChunk)
	for !b.eof && !b.overflow && b.err == nil {
		n, err := b.src.Read(chunk)
		b.observe(chunk[:n], err)
	}

	switch {
	case b.err != nil:
		return nil, b.err
	case b.overflow:
		return nil, ErrBodyNotReplayable
	}

	data := bytes.Clone(b.buf.Bytes())

	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}
