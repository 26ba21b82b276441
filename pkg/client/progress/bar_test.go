package progress

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestBarWrite(t *testing.T) {
	b := &Bar{Name: "item", Width: 10, Total: 100, Completed: 50}
	out := &bytes.Buffer{}
	b.Write(out)
	got := out.String()
	if !strings.Contains(got, "[+++++-----]") {
		t.Errorf("unexpected render %q", got)
	}

	b.Done = true
	b.Status = "done"
	out.Reset()
	b.Write(out)
	if got := out.String(); !strings.Contains(got, "[++++++++++] done") {
		t.Errorf("unexpected render %q", got)
	}
}

func TestWrapReader(t *testing.T) {
	b := &Bar{Width: 10}
	src := io.NopCloser(strings.NewReader("0123456789"))
	rc := b.WrapReader(src, "dl", 10, "downloading", "done", "failed")

	if _, err := io.ReadAll(rc); err != nil {
		t.Fatal(err)
	}
	if b.Completed != 10 || b.Status != "done" || !b.Done {
		t.Errorf("bar after full read: completed=%d status=%q done=%v", b.Completed, b.Status, b.Done)
	}
	if err := rc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestWrapReaderIncompleteClose(t *testing.T) {
	b := &Bar{Width: 10}
	src := io.NopCloser(strings.NewReader("01234"))
	rc := b.WrapReader(src, "dl", 10, "downloading", "done", "failed")

	buf := make([]byte, 5)
	if _, err := io.ReadFull(rc, buf); err != nil {
		t.Fatal(err)
	}
	rc.Close()
	if b.Status != "failed" {
		t.Errorf("status = %q, want failed", b.Status)
	}
}

func TestWrapWriter(t *testing.T) {
	b := &Bar{Width: 10}
	dst := &bytes.Buffer{}
	w := b.WrapWriter(dst, "ul", 10, "uploading", "done", "failed")

	if _, err := w.Write([]byte("01234")); err != nil {
		t.Fatal(err)
	}
	if b.Completed != 5 || b.Status != "uploading" {
		t.Errorf("bar mid write: completed=%d status=%q", b.Completed, b.Status)
	}
	if _, err := w.Write([]byte("56789")); err != nil {
		t.Fatal(err)
	}
	if b.Completed != 10 || b.Status != "done" || !b.Done {
		t.Errorf("bar after full write: completed=%d status=%q done=%v", b.Completed, b.Status, b.Done)
	}
	if dst.String() != "0123456789" {
		t.Errorf("payload = %q", dst.String())
	}
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWrapWriterFailure(t *testing.T) {
	b := &Bar{Width: 10}
	w := b.WrapWriter(failWriter{}, "ul", 10, "uploading", "done", "failed")
	if _, err := w.Write([]byte("x")); err == nil {
		t.Fatal("expected write error")
	}
	if b.Status != "failed" || !b.Done {
		t.Errorf("bar after failed write: status=%q done=%v", b.Status, b.Done)
	}
}
