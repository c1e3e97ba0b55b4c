package telemetry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/shiwa/fc-core/internal/ahrs"
	"github.com/shiwa/fc-core/internal/control"
	"github.com/shiwa/fc-core/internal/link"
)

func sampleState() *control.State {
	return &control.State{
		Ahrs: ahrs.Result{
			Accel: [3]float64{0.5, -0.25, -9.8},
			Gyro:  [3]float64{0.01, 0, -0.02},
			DtS:   0.01,
			YPR:   ahrs.YPR{Yaw: 1, Pitch: 0.1, Roll: -0.1},
		},
		Cmd: [3]float64{3, -4, 0},
	}
}

func TestWords_State(t *testing.T) {
	var b link.TxBuffer
	Words{}.WriteState(&b, sampleState())
	want := "tm:0.5;-0.25;-9.8;0.01;0;-0.02;0.01;1;0.1;-0.1;3;-4;0;\n"
	if got := string(b.Bytes()); got != want {
		t.Errorf("tm = %q\nwant %q", got, want)
	}
}

func TestWriteControl(t *testing.T) {
	var b link.TxBuffer
	ctl := control.Default()
	ctl.Pk, ctl.Dk = 10, 2.5
	WriteControl(&b, &ctl)
	want := "ct:10;0;2.5;1;1;1;\n"
	if got := string(b.Bytes()); got != want {
		t.Errorf("ct = %q, want %q", got, want)
	}
}

func TestBytes_State(t *testing.T) {
	var b link.TxBuffer
	Bytes{}.WriteState(&b, sampleState())
	out := b.Bytes()
	if len(out) != BinaryFrameLen {
		t.Fatalf("len = %d, want %d", len(out), BinaryFrameLen)
	}
	if out[0] != 0 || out[len(out)-1] != 0 {
		t.Error("кадр должен начинаться и заканчиваться 0x00")
	}
	az := math.Float32frombits(binary.LittleEndian.Uint32(out[1+4*2:]))
	if az != float32(-9.8) {
		t.Errorf("az = %v", az)
	}
	f, err := ParseBinary(out)
	if err != nil {
		t.Fatal(err)
	}
	if f.Values[10] != 3 {
		t.Errorf("cmd0 = %v", f.Values[10])
	}
}

func TestDummy_NoTransfer(t *testing.T) {
	tx := &countTx{}
	ch := link.NewChannel(tx)
	Send(ch, Dummy{}, sampleState())
	if tx.starts != 0 {
		t.Errorf("dummy запустил %d передач", tx.starts)
	}
}

type countTx struct{ starts int }

func (c *countTx) Start(p []byte) link.Transfer { c.starts++; return c }
func (c *countTx) Done() bool                   { return true }
func (c *countTx) Err() error                   { return nil }

func TestSendStatus_ControlThenState(t *testing.T) {
	var got []byte
	tx := &captureTx{out: &got}
	ch := link.NewChannel(tx)
	ctl := control.Default()
	SendStatus(ch, Words{}, &ctl, sampleState())
	f, err := Parse(got[:len("ct:0;0;0;1;1;1;\n")])
	if err != nil || f.Kind != "ct" {
		t.Fatalf("первый кадр: %v %v (%q)", f, err, got)
	}
	if _, err := Parse(got[len("ct:0;0;0;1;1;1;\n"):]); err != nil {
		t.Errorf("второй кадр: %v", err)
	}
}

type captureTx struct{ out *[]byte }

func (c *captureTx) Start(p []byte) link.Transfer {
	*c.out = append((*c.out)[:0], p...)
	return c
}
func (c *captureTx) Done() bool { return true }
func (c *captureTx) Err() error { return nil }

func TestParse(t *testing.T) {
	f, err := Parse([]byte("tm:0.5;-0.25;-9.8;0.01;0;-0.02;0.01;1;0.1;-0.1;3;-4;0;\n"))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := f.Field("roll"); !ok || math.Abs(v+0.1) > 1e-6 {
		t.Errorf("roll = %v %v", v, ok)
	}

	bad := []string{"", "xx:1;", "tm:1;2;", "ct:1;2;3;4;5;x;"}
	for _, s := range bad {
		if _, err := Parse([]byte(s)); err == nil {
			t.Errorf("Parse(%q): ожидали ошибку", s)
		}
	}
}

func TestNew(t *testing.T) {
	for kind, want := range map[string]string{"none": KindNone, "words": KindWords, "bytes": KindBytes} {
		tl, err := New(kind)
		if err != nil || tl.Kind() != want {
			t.Errorf("New(%q) = %v, %v", kind, tl, err)
		}
	}
	if _, err := New("json"); err == nil {
		t.Error("ожидали ошибку")
	}
}
