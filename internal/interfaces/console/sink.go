package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"
)

var categoryColor = map[model.Category]string{
	model.CategorySuccess:      "\033[32m",
	model.CategoryWarning:      "\033[33m",
	model.CategoryError:        "\033[31m",
	model.CategoryInfo:         "\033[36m",
	model.CategoryPriceAlert:   "\033[35m",
	model.CategoryWeatherAlert: "\033[34m",
}

// Sink 写终端；同时作为 Bridge 的监听者把新通知打印在 live 行之上
type Sink struct {
	mu   sync.Mutex
	out  io.Writer
	live string
}

var _ port.Sink = (*Sink)(nil)

func NewSink() *Sink { return &Sink{out: os.Stdout} }

func NewSinkTo(w io.Writer) *Sink { return &Sink{out: w} }

func (s *Sink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = line
	_, err := fmt.Fprint(s.out, line) // no newline
	return err
}

// A 方案：打印快照行后，留一个空行占位；不立刻重画 live，等下一次变化刷新
func (s *Sink) WriteSnapshot(ts time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "\n%s %s\n\n", ts.Format("2006-01-02 15:04:05"), line)
	return err
}

// WriteNotification 清掉当前 live 行，打印通知，再把 live 行画回去
func (s *Sink) WriteNotification(n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := categoryColor[n.Category]
	_, err := fmt.Fprintf(s.out, "\r\033[K%s %s[%s]\033[0m %s: %s\n%s",
		n.Timestamp.Format("15:04:05"), col, n.Category, n.Title, n.Message, s.live)
	return err
}

func (s *Sink) OnNotification(n model.Notification) { _ = s.WriteNotification(n) }

func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, "\n")
	return err
}
