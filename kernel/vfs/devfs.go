// Package vfs holds the /dev namespace: driver name to file descriptor.
package vfs

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"hearth/kernel"
	"hearth/kernel/device"
	"hearth/kernel/klog"
	"hearth/kernel/spin"
)

// DevDir is the mount point drivers appear under.
const DevDir = "/dev/"

const firstFd = 3

// DevFS maps driver names to their descriptors.
type DevFS struct {
	files  *spin.Mutex[map[string]device.FileDescriptor]
	nextFd atomic.Int32
}

func New() *DevFS {
	fs := &DevFS{files: spin.New(map[string]device.FileDescriptor{})}
	fs.nextFd.Store(firstFd)
	return fs
}

// AddDevFile installs desc as /dev/name. Names are unique; a second driver
// under the same name is rejected with ErrInvalidArgument.
func (fs *DevFS) AddDevFile(desc device.FileDescriptor, name string) error {
	if err := device.ValidName(name); err != nil {
		klog.Errorf("devfs: %v", err)
		return err
	}
	if !desc.Valid() {
		klog.Errorf("devfs: %s: incomplete descriptor", name)
		return fmt.Errorf("devfs: %s: incomplete descriptor: %w", name, kernel.ErrInvalidArgument)
	}

	g := fs.files.SpinLock()
	defer g.Unlock()
	files := *g.Get()
	if _, dup := files[name]; dup {
		klog.Errorf("devfs: %s%s already exists", DevDir, name)
		return fmt.Errorf("devfs: %s%s exists: %w", DevDir, name, kernel.ErrInvalidArgument)
	}
	files[name] = desc
	klog.Debugf("devfs: added %s%s", DevDir, name)
	return nil
}

// Lookup accepts either a bare name or a /dev/ path.
func (fs *DevFS) Lookup(name string) (device.FileDescriptor, error) {
	name = strings.TrimPrefix(name, DevDir)
	g := fs.files.SpinLock()
	desc, ok := (*g.Get())[name]
	g.Unlock()
	if !ok {
		return device.FileDescriptor{}, fmt.Errorf("devfs: %s%s: %w", DevDir, name, kernel.ErrNotFound)
	}
	return desc, nil
}

// List returns the installed names in order.
func (fs *DevFS) List() []string {
	g := fs.files.SpinLock()
	names := make([]string, 0, len(*g.Get()))
	for name := range *g.Get() {
		names = append(names, name)
	}
	g.Unlock()
	sort.Strings(names)
	return names
}

// Open looks up name and calls the driver's open.
func (fs *DevFS) Open(name string) (*File, error) {
	desc, err := fs.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := desc.Open(); err != nil {
		return nil, err
	}
	return &File{
		fd:   int(fs.nextFd.Add(1) - 1),
		name: strings.TrimPrefix(name, DevDir),
		desc: desc,
	}, nil
}

// File is an open /dev entry.
type File struct {
	fd     int
	name   string
	desc   device.FileDescriptor
	closed bool
}

func (f *File) Fd() int      { return f.fd }
func (f *File) Name() string { return DevDir + f.name }

func (f *File) Info() device.Info { return f.desc.Info() }

func (f *File) Read() ([]byte, error) {
	if f.closed {
		return nil, fmt.Errorf("devfs: read %s: file closed: %w", f.Name(), kernel.ErrInvalidArgument)
	}
	return f.desc.Read()
}

func (f *File) Write(p []byte) error {
	if f.closed {
		return fmt.Errorf("devfs: write %s: file closed: %w", f.Name(), kernel.ErrInvalidArgument)
	}
	return f.desc.Write(p)
}

// Close calls the driver's close once. A Busy driver leaves the file open
// so the caller can retry.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	if err := f.desc.Close(); err != nil {
		return err
	}
	f.closed = true
	return nil
}

// Default is the kernel's /dev.
var Default = New()

func AddDevFile(desc device.FileDescriptor, name string) error {
	return Default.AddDevFile(desc, name)
}
