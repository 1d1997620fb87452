package main

import (
	"golang.org/x/sys/unix"

	"github.com/ernestrc/librux"
)

const echoBufCapacity = 1024 * 1024

// echoHandler is a byte-exact echo handler, private to this command, that
// satisfies librux.Handler directly.
type echoHandler struct {
	fd    int32
	sockw bool
}

func (h *echoHandler) OnNext(ev librux.MuxEvent) librux.Command {
	if ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0 {
		return librux.Close
	}

	if ev.Events&unix.EPOLLIN != 0 {
		if h.onReadable(ev) {
			return librux.Close
		}
	}
	if h.sockw || ev.Events&unix.EPOLLOUT != 0 {
		if h.onWritable(ev) {
			return librux.Close
		}
	}
	return librux.Keep
}

func (h *echoHandler) onReadable(ev librux.MuxEvent) bool {
	var tmp [4096]byte
	for {
		n, err := unix.Read(int(h.fd), tmp[:])
		if n > 0 {
			if _, werr := ev.Resource.Write(tmp[:n]); werr != nil {
				return true
			}
			continue
		}
		if err == unix.EAGAIN {
			return false
		}
		return n == 0 || err != nil
	}
}

func (h *echoHandler) onWritable(ev librux.MuxEvent) bool {
	for ev.Resource.Readable() > 0 {
		out := ev.Resource.Slice(0)
		n, err := unix.Write(int(h.fd), out)
		if n > 0 {
			ev.Resource.Consume(n)
		}
		if err == unix.EAGAIN {
			h.sockw = true
			return false
		}
		if err != nil {
			return true
		}
	}
	h.sockw = false
	return false
}

func (h *echoHandler) Reset() {
	h.sockw = false
}

type echoHandlerFactory struct{}

func (echoHandlerFactory) NewResource() *librux.ByteBuffer {
	return librux.NewByteBuffer(echoBufCapacity, echoBufCapacity)
}

func (echoHandlerFactory) NewHandler(epfd int, cfd int32) *echoHandler {
	return &echoHandler{fd: cfd}
}

func (echoHandlerFactory) Interests() uint32 {
	return unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLET
}
