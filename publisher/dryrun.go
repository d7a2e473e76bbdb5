package publisher

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// DryRun accepts every post and only logs it.
type DryRun struct {
	log logrus.FieldLogger

	mu   sync.Mutex
	sent []string
}

func NewDryRun(log logrus.FieldLogger) *DryRun {
	return &DryRun{log: log}
}

func (d *DryRun) Publish(ctx context.Context, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.Lock()
	d.sent = append(d.sent, text)
	d.mu.Unlock()

	d.log.WithFields(logrus.Fields{
		"chars": utf8.RuneCountInString(text),
		"text":  text,
	}).Info("Dry run: post not sent")
	return true, nil
}

// Sent returns the texts accepted so far.
func (d *DryRun) Sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

func (d *DryRun) Check(context.Context) error { return nil }
