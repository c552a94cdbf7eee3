package monitor

import (
	"bytes"
	"strings"
	"testing"

	"hearth/kernel"
	"hearth/kernel/arch/archtest"
	"hearth/kernel/device"
	"hearth/kernel/task"
	"hearth/kernel/uptime"
	"hearth/kernel/vfs"
)

type fakePort struct {
	in  []byte
	out bytes.Buffer
	// writes to refuse with ErrBusy
	busy int
}

func (p *fakePort) desc(name string) device.FileDescriptor {
	return device.FileDescriptor{
		Info:  func() device.Info { return device.Info{Name: name, Attached: true} },
		Open:  func() error { return nil },
		Close: func() error { return nil },
		Read: func() ([]byte, error) {
			b := p.in
			p.in = nil
			return b, nil
		},
		Write: func(b []byte) error {
			if p.busy > 0 {
				p.busy--
				return kernel.ErrBusy
			}
			p.out.Write(b)
			return nil
		},
	}
}

type fixture struct {
	m    *Monitor
	fs   *vfs.DevFS
	ex   *task.Executor
	port *fakePort
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{fs: vfs.New(), ex: task.New(uptime.NewManual(0)), port: &fakePort{}}
	if err := f.fs.AddDevFile(f.port.desc("uart"), "uart"); err != nil {
		t.Fatalf("AddDevFile() err = %v", err)
	}
	cfg.FS, cfg.Executor = f.fs, f.ex
	if cfg.Prompt == "" {
		cfg.Prompt = "> "
	}
	if cfg.Ports == nil {
		cfg.Ports = []string{"uart"}
	}
	f.m = New(cfg)
	return f
}

func (f *fixture) typeLine(s string) string {
	f.port.in = append(f.port.in, s...)
	f.m.step(nil)
	out := f.port.out.String()
	f.port.out.Reset()
	return out
}

func TestLineEditing(t *testing.T) {
	f := newFixture(t, Config{})
	if got, want := f.typeLine("ecko\x7f\x7fho hi\r"), "> hi\n> "; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if got, want := f.typeLine("\x1b[Aecho x\r\necho y\n"), "x\n> y\n> "; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestSerialEcho(t *testing.T) {
	f := newFixture(t, Config{SerialEcho: true})
	got := f.typeLine("ecx\x7fho\r")
	if want := "> ecx\b \bho\n\n> "; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestTabCompletion(t *testing.T) {
	f := newFixture(t, Config{SerialEcho: true})
	if got, want := f.typeLine("upt\t"), "> uptime "; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	// "p" is ambiguous: panic, poweroff, ps.
	if got := f.typeLine("\x7f\x7f\x7f\x7f\x7f\x7f\x7fp\t"); !strings.HasSuffix(got, "p") {
		t.Fatalf("ambiguous completion output = %q", got)
	}
}

func TestBusyPortKeepsOutput(t *testing.T) {
	f := newFixture(t, Config{})
	f.port.busy = 1
	if got := f.typeLine("echo a\r"); got != "" {
		t.Fatalf("output while busy = %q, want none", got)
	}
	if got, want := f.typeLine(""), "> a\n> "; got != want {
		t.Fatalf("output after busy = %q, want %q", got, want)
	}
}

func TestLongLineTruncated(t *testing.T) {
	f := newFixture(t, Config{})
	f.typeLine("echo " + strings.Repeat("x", 2*MaxLine) + "\r")
	if n := len(f.m.ports[0].line); n != 0 {
		t.Fatalf("line not reset, len = %d", n)
	}
}

func TestBootCommands(t *testing.T) {
	f := newFixture(t, Config{Boot: []string{"echo booted"}})
	if got, want := f.typeLine(""), "> echo booted\nbooted\n> "; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if got := f.typeLine(""); got != "" {
		t.Fatalf("boot commands ran twice: %q", got)
	}
}

func TestBootCommandsWithoutPorts(t *testing.T) {
	f := newFixture(t, Config{Ports: []string{"tty0"}, Boot: []string{"echo quiet"}})
	f.m.step(nil)
	if len(f.m.ports) != 0 {
		t.Fatalf("ports = %d, want 0", len(f.m.ports))
	}
	if got := f.port.out.String(); got != "" {
		t.Fatalf("uart output = %q, want none", got)
	}
}

func TestExec(t *testing.T) {
	f := newFixture(t, Config{})
	for _, tc := range []struct {
		line string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{`echo "a b" c`, "a b c\n"},
		{"nope", "unknown command: nope"},
		{`echo "open`, "parse error"},
		{"info", "usage: info <dev>"},
		{"info uart", "name: uart\nattached: true\n"},
		{"info nope", "no such device"},
		{"help ps", "usage: tasks"},
		{"ls", "/dev/uart"},
		{"mmio", "total"},
		{"uptime", "up "},
		{"beep 5 100", "frequency"},
		{"beep 440 0", "duration"},
	} {
		if got := f.m.Exec(tc.line); !strings.Contains(got, tc.want) || (tc.want == "" && got != "") {
			t.Fatalf("Exec(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestCat(t *testing.T) {
	f := newFixture(t, Config{})
	f.port.in = []byte("hello")
	if got, want := f.m.Exec("cat uart"), "hello\n"; got != want {
		t.Fatalf("cat text = %q, want %q", got, want)
	}
	f.port.in = []byte{0x00, 0x01, 0x02, 0xFF}
	if got := f.m.Exec("cat /dev/uart"); !strings.Contains(got, "00 01 02 ff") {
		t.Fatalf("cat binary = %q, want a hex dump", got)
	}
}

func TestWrite(t *testing.T) {
	f := newFixture(t, Config{})
	if got := f.m.Exec("write uart hello world"); got != "" {
		t.Fatalf("write = %q, want no output", got)
	}
	if got, want := f.port.out.String(), "hello world"; got != want {
		t.Fatalf("port got %q, want %q", got, want)
	}
}

func TestTasksAndBeep(t *testing.T) {
	f := newFixture(t, Config{})
	if _, err := f.ex.Spawn(f.m.Future(), 0); err != nil {
		t.Fatalf("Spawn() err = %v", err)
	}
	if got := f.m.Exec("tasks"); !strings.Contains(got, "monitor") {
		t.Fatalf("tasks = %q, want the monitor listed", got)
	}
	if got := f.m.Exec("beep 440 100"); !strings.Contains(got, "beep: task") {
		t.Fatalf("beep = %q", got)
	}
	if n := f.ex.Len(); n != 2 {
		t.Fatalf("Len() after beep = %d, want 2", n)
	}
}

func TestPowerOff(t *testing.T) {
	p := archtest.Install(archtest.New())
	f := newFixture(t, Config{})
	if got := f.m.Exec("exit 3"); got != "powering off\n" {
		t.Fatalf("exit = %q", got)
	}
	if len(p.Writes) != 1 || p.Writes[0] != (archtest.Write{Port: portDebugExit, Value: 3}) {
		t.Fatalf("writes = %v, want one exit write", p.Writes)
	}
	if got := f.m.Exec("poweroff 300"); !strings.Contains(got, "exit code") {
		t.Fatalf("poweroff 300 = %q", got)
	}
}

func TestPanicCommand(t *testing.T) {
	f := newFixture(t, Config{})
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("panic command returned")
		}
	}()
	f.m.Exec("panic")
}

func TestRegistryDuplicates(t *testing.T) {
	r := newRegistry()
	if err := registerCommands(r); err != nil {
		t.Fatalf("registerCommands() err = %v", err)
	}
	if err := r.register(command{Name: "ps", Run: cmdEcho}); err == nil {
		t.Fatalf("register() over an alias err = nil")
	}
	if _, ok := r.resolve("?"); !ok {
		t.Fatalf("resolve(?) failed")
	}
}
