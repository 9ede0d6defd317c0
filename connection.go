package znet

import (
	"context"
	"fmt"
	"github.com/zhihanii/evnet/evbuffer"
	"github.com/zhihanii/taskpool"
	"github.com/zhihanii/zlog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type Conn interface {
	FDConn
	ReadLine() ([]byte, bool, error)
	WriteString(s string) (n int, err error)
	Flush() error
	LoadValue() any
	StoreValue(v any)
}

type FDConn interface {
	net.Conn
	Fd() int
}

const (
	defaultZeroCopyTimeoutSec = 60
)

// loopDeferredSink binds a buffer's coalesced callback dispatch to the
// connection's event loop task dispatch, so a callback registered on
// inputBuffer/outputBuffer runs on a loop-managed goroutine instead of
// inline on whatever goroutine triggered the mutation.
type loopDeferredSink struct {
	ctx context.Context
}

func (s *loopDeferredSink) Schedule(job func()) {
	taskpool.Submit(s.ctx, job)
}

type connection struct {
	netFD
	locker

	onReadCallback atomic.Value

	ctx             context.Context
	closeCallbacks  atomic.Value
	operator        *FDOperator
	readTimeout     time.Duration
	readTimer       *time.Timer
	readTrigger     chan struct{}
	waitReadSize    int64
	writeTrigger    chan error
	inputBuffer     *evbuffer.Buffer
	outputBuffer    *evbuffer.Buffer
	inputBarrier    *barrier
	outputBarrier   *barrier
	supportZeroCopy bool
	maxSize         int // The maximum size of data between two Release().
	bookSize        int // The size of data that can be read at once.

	value     any
	lastFlush time.Time
}

func (c *connection) Reader() Reader {
	return c
}

func (c *connection) Writer() Writer {
	return c
}

func (c *connection) LoadValue() any {
	return c.value
}

func (c *connection) StoreValue(v any) {
	c.value = v
}

// IsActive implements Connection.
func (c *connection) IsActive() bool {
	return c.isCloseBy(none)
}

func (c *connection) SetOnRead(onRead func(context.Context, Conn) error) {
	c.onReadCallback.Store(OnRead(onRead))
}

// SetIdleTimeout implements Connection.
func (c *connection) SetIdleTimeout(timeout time.Duration) error {
	if timeout > 0 {
		return c.SetKeepAlive(int(timeout.Seconds()))
	}
	return nil
}

// SetReadTimeout implements Connection.
func (c *connection) SetReadTimeout(timeout time.Duration) error {
	if timeout >= 0 {
		c.readTimeout = timeout
	}
	return nil
}

// nextInput pulls n contiguous bytes from the front of inputBuffer and
// drains them in one step, the zero-copy read every Reader method is
// built on.
func (c *connection) nextInput(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	p, err := c.inputBuffer.Pullup(n)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("evnet: short buffer")
	}
	if _, err := c.inputBuffer.Drain(n); err != nil {
		return nil, err
	}
	return p, nil
}

// Next implements Connection.
func (c *connection) Next(n int) (p []byte, err error) {
	if err = c.waitRead(n); err != nil {
		return p, err
	}
	return c.nextInput(n)
}

// Peek implements Connection.
func (c *connection) Peek(n int) (buf []byte, err error) {
	if err = c.waitRead(n); err != nil {
		return buf, err
	}
	buf, err = c.inputBuffer.Pullup(n)
	if err == nil && buf == nil {
		err = fmt.Errorf("evnet: short buffer")
	}
	return buf, err
}

// Skip implements Connection.
func (c *connection) Skip(n int) (err error) {
	if err = c.waitRead(n); err != nil {
		return err
	}
	_, err = c.inputBuffer.Drain(n)
	return err
}

// Release implements Connection.
func (c *connection) Release() (err error) {
	// Check inputBuffer length first to reduce contention in mux situation.
	// c.operator.do competes with c.inputs/c.inputAck
	if c.inputBuffer.Len() == 0 && c.operator.tryOnEvent() {
		c.operator.done()
	}
	return nil
}

// Slice implements Connection.
func (c *connection) Slice(n int) (r Reader, err error) {
	p, err := c.Next(n)
	if err != nil {
		return nil, err
	}
	return &byteSliceReader{buf: p}, nil
}

// Len implements Connection.
func (c *connection) Len() (length int) {
	return c.inputBuffer.Len()
}

// Until implements Connection.
func (c *connection) Until(delim byte) (line []byte, err error) {
	var n int
	for {
		if err = c.waitRead(n + 1); err != nil {
			// return all the data in the buffer
			line, _ = c.Next(c.inputBuffer.Len())
			return
		}

		var ptr evbuffer.Ptr
		if e := c.inputBuffer.PtrSet(&ptr, int64(n)); e != nil {
			n = c.inputBuffer.Len()
			continue
		}
		found, ok := c.inputBuffer.Search([]byte{delim}, &ptr)
		if !ok {
			n = c.inputBuffer.Len() // skip all exists bytes
			continue
		}
		return c.Next(int(found.Pos) + 1)
	}
}

func (c *connection) ReadSlice(delim byte) (line []byte, err error) {
	var n int
	for {
		if err = c.waitRead(n + 1); err != nil {
			// return all the data in the buffer
			line, _ = c.Next(c.inputBuffer.Len())
			return
		}

		var ptr evbuffer.Ptr
		if e := c.inputBuffer.PtrSet(&ptr, int64(n)); e != nil {
			n = c.inputBuffer.Len()
			continue
		}
		found, ok := c.inputBuffer.Search([]byte{delim}, &ptr)
		if !ok {
			n = c.inputBuffer.Len() // skip all exists bytes
			continue
		}
		return c.Next(int(found.Pos) + 1)
	}
}

func (c *connection) ReadLine() (line []byte, isPrefix bool, err error) {
	line, err = c.ReadSlice('\n')
	if len(line) == 0 {
		if err != nil {
			line = nil
		}
		return
	}
	err = nil

	if line[len(line)-1] == '\n' {
		drop := 1
		if len(line) > 1 && line[len(line)-2] == '\r' {
			drop = 2
		}
		line = line[:len(line)-drop]
	}
	return
}

// ReadString implements Connection.
func (c *connection) ReadString(n int) (s string, err error) {
	if err = c.waitRead(n); err != nil {
		return s, err
	}
	p, err := c.nextInput(n)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// ReadBinary implements Connection.
//
// Unlike ReadBytes, the returned slice is a fresh copy: safe to retain
// past the next buffer operation.
func (c *connection) ReadBinary(n int) (p []byte, err error) {
	if err = c.waitRead(n); err != nil {
		return p, err
	}
	p = make([]byte, n)
	_, err = c.inputBuffer.Remove(p, n)
	return p, err
}

func (c *connection) ReadBytes(n int) (p []byte, err error) {
	if err = c.waitRead(n); err != nil {
		return p, err
	}
	return c.nextInput(n)
}

// ReadByte implements Connection.
func (c *connection) ReadByte() (b byte, err error) {
	if err = c.waitRead(1); err != nil {
		return b, err
	}
	p, err := c.nextInput(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ------------------------------------------ implement zero-copy writer ------------------------------------------

// Malloc implements Connection.
func (c *connection) Malloc(n int) (buf []byte, err error) {
	return c.outputBuffer.ReserveSpace(n)
}

// MallocLen implements Connection.
func (c *connection) MallocLen() (length int) {
	return c.outputBuffer.ReservedLen()
}

// Flush will send all malloc data to the peer,
// so must confirm that the allocated bytes have been correctly assigned.
//
// Flush returns at once if the out buffer is empty. Otherwise it sends
// what it can directly with sendmsg; if bytes remain, it enables epoll
// write events and blocks until the poller has drained the rest.
func (c *connection) Flush() error {
	if !c.IsActive() || !c.lock(flushing) {
		return fmt.Errorf("evnet: conn closed when flush")
	}
	defer c.unlock(flushing)
	return c.flush()
}

// MallocAck implements Connection.
func (c *connection) MallocAck(n int) (err error) {
	return c.outputBuffer.CommitSpace(n)
}

// Append implements Connection.
func (c *connection) Append(w Writer) (err error) {
	wc, ok := w.(*connection)
	if !ok {
		return fmt.Errorf("evnet: Append only supports another connection's Writer")
	}
	return evbuffer.AddBuffer(c.outputBuffer, wc.outputBuffer)
}

// WriteString implements Connection.
func (c *connection) WriteString(s string) (n int, err error) {
	return c.outputBuffer.Add([]byte(s))
}

// WriteBinary implements Connection.
func (c *connection) WriteBinary(b []byte) (n int, err error) {
	return c.outputBuffer.Add(b)
}

func (c *connection) WriteBytes(b []byte) (n int, err error) {
	return c.outputBuffer.Add(b)
}

// WriteDirect implements Connection.
func (c *connection) WriteDirect(p []byte, remainCap int) (err error) {
	if _, err = c.outputBuffer.Add(p); err != nil {
		return err
	}
	if remainCap > 0 {
		_, err = c.outputBuffer.ReserveSpace(remainCap)
	}
	return err
}

// WriteByte implements Connection.
func (c *connection) WriteByte(b byte) (err error) {
	_, err = c.outputBuffer.Add([]byte{b})
	return err
}

// ------------------------------------------ implement net.Conn ------------------------------------------

// Read blocks until at least one byte is buffered, then copies out up to
// len(p) bytes. If the connection closes or the read times out first, it
// returns the error from waitRead, not io.EOF.
func (c *connection) Read(p []byte) (n int, err error) {
	l := len(p)
	if l == 0 {
		return 0, nil
	}
	if err = c.waitRead(1); err != nil {
		return 0, err
	}
	if has := c.inputBuffer.Len(); has < l {
		l = has
	}
	src, err := c.nextInput(l)
	if err != nil {
		return 0, err
	}
	n = copy(p, src)
	return n, nil
}

// Write will Flush soon.
func (c *connection) Write(p []byte) (n int, err error) {
	if !c.IsActive() || !c.lock(flushing) {
		return 0, fmt.Errorf("evnet: conn closed when write")
	}
	defer c.unlock(flushing)

	n, err = c.outputBuffer.Add(p)
	now := time.Now()
	if now.Sub(c.lastFlush) > time.Millisecond*1500 {
		c.lastFlush = now
		err = c.flush()
	}
	return n, err
}

// Close implements Connection.
func (c *connection) Close() error {
	return c.onClose()
}

// ------------------------------------------ private ------------------------------------------

var barrierPool = sync.Pool{
	New: func() interface{} {
		return &barrier{
			bs:  make([][]byte, barriercap),
			ivs: make([]syscall.Iovec, barriercap),
		}
	},
}

// init initialize the connection with options
func (c *connection) init(conn FDConn, opts *options, eh EventHandler) (err error) {
	// init buffer, barrier, finalizer
	c.readTrigger = make(chan struct{}, 1)
	c.writeTrigger = make(chan error, 1)
	c.bookSize, c.maxSize = block1k/2, pageSize
	c.inputBuffer, c.outputBuffer = evbuffer.New(), evbuffer.New()
	c.inputBarrier, c.outputBarrier = barrierPool.Get().(*barrier), barrierPool.Get().(*barrier)

	c.initNetFD(conn) // conn must be *netFD{}
	c.initFDOperator()
	c.initFinalizer()

	syscall.SetNonblock(c.fd, true)
	// enable TCP_NODELAY by default
	switch c.network {
	case "tcp", "tcp4", "tcp6":
		setTCPNoDelay(c.fd, true)
	}

	err1 := setZeroCopy(c.fd)
	if err1 == nil {
		c.supportZeroCopy = true
	}

	// connection initialized and prepare options
	return c.onPrepare(opts, eh)
}

func (c *connection) initNetFD(conn FDConn) {
	if nfd, ok := conn.(*netFD); ok {
		c.netFD = *nfd
		return
	}
	c.netFD = netFD{
		fd:         conn.Fd(),
		localAddr:  conn.LocalAddr(),
		remoteAddr: conn.RemoteAddr(),
	}
}

func (c *connection) initFDOperator() {
	op := allocOp()
	op.FD = c.fd
	op.OnHup = c.onHup
	op.Inputs, op.InputAck = c.inputs, c.inputAck
	op.Outputs, op.OutputAck = c.outputs, c.outputAck
	op.isConnection = true

	c.operator = op
}

func (c *connection) initFinalizer() {
	c.AddCloseCallback(func(c *connection) error {
		c.stop(flushing)
		// stop the finalizing state to prevent conn.fill function to be performed
		c.stop(finalizing)
		freeOp(c.operator)
		c.netFD.Close()
		c.closeBuffer()
		return nil
	})
}

func (c *connection) triggerRead() {
	select {
	case c.readTrigger <- struct{}{}:
	default:
	}
}

func (c *connection) triggerWrite(err error) {
	select {
	case c.writeTrigger <- err:
	default:
	}
}

// waitRead will wait full n bytes.
func (c *connection) waitRead(n int) (err error) {
	if n <= c.inputBuffer.Len() {
		return nil
	}
	atomic.StoreInt64(&c.waitReadSize, int64(n))
	defer atomic.StoreInt64(&c.waitReadSize, 0)
	if c.readTimeout > 0 {
		return c.waitReadWithTimeout(n)
	}
	// wait full n
	for c.inputBuffer.Len() < n {
		if c.IsActive() {
			<-c.readTrigger
			continue
		}
		// confirm that fd is still valid.
		if atomic.LoadUint32(&c.netFD.closed) == 0 {
			return c.fill(n)
		}
		return fmt.Errorf("evnet: conn closed wait read")
	}
	return nil
}

// waitReadWithTimeout will wait full n bytes or until timeout.
func (c *connection) waitReadWithTimeout(n int) (err error) {
	// set read timeout
	if c.readTimer == nil {
		c.readTimer = time.NewTimer(c.readTimeout)
	} else {
		c.readTimer.Reset(c.readTimeout)
	}

	for c.inputBuffer.Len() < n {
		if !c.IsActive() {
			// cannot return directly, stop timer before !
			// confirm that fd is still valid.
			if atomic.LoadUint32(&c.netFD.closed) == 0 {
				err = c.fill(n)
			} else {
				err = fmt.Errorf("evnet: conn closed")
			}
			break
		}

		select {
		case <-c.readTimer.C:
			// double check if there is enough data to be read
			if c.inputBuffer.Len() >= n {
				return nil
			}
			return fmt.Errorf("read timeout remote addr: %s", c.remoteAddr.String())
		case <-c.readTrigger:
			continue
		}
	}

	// clean timer.C
	if !c.readTimer.Stop() {
		<-c.readTimer.C
	}
	return err
}

// fill data after connection is closed.
func (c *connection) fill(need int) (err error) {
	if !c.lock(finalizing) {
		return fmt.Errorf("evnet: conn closed")
	}
	defer c.unlock(finalizing)

	var n int
	for {
		n, err = readv(c.fd, c.inputs(c.inputBarrier.bs), c.inputBarrier.ivs)
		c.inputAck(n)
		err = c.eofError(n, err)
		if err != nil {
			break
		}
	}
	if c.inputBuffer.Len() >= need {
		return nil
	}
	return err
}

func (c *connection) eofError(n int, err error) error {
	if err == syscall.EINTR {
		return nil
	}
	if n == 0 && err == nil {
		return fmt.Errorf("eof")
	}
	return err
}

func (c *connection) onPrepare(opts *options, eh EventHandler) (err error) {
	c.SetOnRead(eh.OnRead)
	if opts != nil && opts.readTimeout > 0 {
		c.SetReadTimeout(opts.readTimeout)
	}

	if c.ctx == nil {
		c.ctx = context.Background()
	}
	sink := &loopDeferredSink{ctx: c.ctx}
	c.inputBuffer.DeferCallbacks(sink)
	c.outputBuffer.DeferCallbacks(sink)
	if c.IsActive() {
		return c.register()
	}
	return nil
}

// closeCallback .
// It can be confirmed that closeCallback and onRequest will not be executed concurrently.
// If onRequest is still running, it will trigger closeCallback on exit.
func (c *connection) closeCallback(needLock bool) (err error) {
	if needLock && !c.lock(processing) {
		return nil
	}
	// If Close is called during OnPrepare, poll is not registered.
	if c.closeBy(user) && c.operator.poller != nil {
		c.operator.Control(EpollDetach)
	}
	var latest = c.closeCallbacks.Load()
	if latest == nil {
		return nil
	}
	for node := latest.(*closeCallbackNode); node != nil; node = node.pre {
		node.cb(c)
	}
	return nil
}

func (c *connection) register() (err error) {
	if c.operator.poller != nil {
		err = c.operator.Control(EpollModRead)
	} else {
		c.operator.poller = defaultPollerManager.Pick()
		err = c.operator.Control(EpollRead)
	}
	if err != nil {
		zlog.Errorf("connection register failed: %v", err)
		c.Close()
		return
	}
	return nil
}

type CloseCallback func(c *connection) error

type closeCallbackNode struct {
	cb  CloseCallback
	pre *closeCallbackNode
}

func (c *connection) AddCloseCallback(callback CloseCallback) error {
	if callback == nil {
		return nil
	}
	var node = &closeCallbackNode{
		cb: callback,
	}
	if pre := c.closeCallbacks.Load(); pre != nil {
		node.pre = pre.(*closeCallbackNode)
	}
	c.closeCallbacks.Store(node)
	return nil
}

// onHup means close by poller.
func (c *connection) onHup(p Poller) error {
	if c.closeBy(poller) {
		c.triggerRead()
		c.triggerWrite(fmt.Errorf("evnet: conn closed"))
		var onRead, _ = c.onReadCallback.Load().(OnRead)
		if onRead != nil {
			c.closeCallback(true)
		}
	}
	return nil
}

// onClose means close by user.
func (c *connection) onClose() error {
	if c.closeBy(user) {
		c.triggerRead()
		c.triggerWrite(fmt.Errorf("evnet: conn closed"))
		c.closeCallback(true)
		return nil
	}
	if c.isCloseBy(poller) {
		// Connection with OnRequest of nil
		// relies on the user to actively close the connection to recycle resources.
		c.closeCallback(true)
	}
	return nil
}

// closeBuffer recycle input & output buffers.
func (c *connection) closeBuffer() {
	var onRead, _ = c.onReadCallback.Load().(OnRead)
	if c.inputBuffer.Len() == 0 || onRead != nil {
		c.inputBuffer.Destroy()
		barrierPool.Put(c.inputBarrier)
	}

	c.outputBuffer.Destroy()
	barrierPool.Put(c.outputBarrier)
}

// inputs implements FDOperator.
func (c *connection) inputs(vs [][]byte) (rs [][]byte) {
	buf, err := c.inputBuffer.ReserveSpace(c.bookSize)
	if err != nil {
		return vs[:0]
	}
	vs[0] = buf
	return vs[:1]
}

// inputAck implements FDOperator.
func (c *connection) inputAck(n int) (err error) {
	if n <= 0 {
		return c.inputBuffer.CommitSpace(0)
	}

	// Auto size bookSize.
	if n == c.bookSize && c.bookSize < mallocMax {
		c.bookSize <<= 1
	}

	if err = c.inputBuffer.CommitSpace(n); err != nil {
		return err
	}
	length := c.inputBuffer.Len()
	if c.maxSize < length {
		c.maxSize = length
	}
	if c.maxSize > mallocMax {
		c.maxSize = mallocMax
	}

	var needTrigger = true
	if length == n {
		needTrigger = c.onRead()
	}
	if needTrigger && length >= int(atomic.LoadInt64(&c.waitReadSize)) {
		c.triggerRead()
	}
	return nil
}

// outputs implements FDOperator.
func (c *connection) outputs(vs [][]byte) (rs [][]byte, supportZeroCopy bool) {
	if c.outputBuffer.IsEmpty() {
		c.rw2r()
		return rs, c.supportZeroCopy
	}
	rs = c.outputBuffer.PeekAll(vs[:0])
	return rs, c.supportZeroCopy
}

// outputAck implements FDOperator.
func (c *connection) outputAck(n int) (err error) {
	if n > 0 {
		_, err = c.outputBuffer.Drain(n)
	}
	if c.outputBuffer.IsEmpty() {
		c.rw2r()
	}
	return err
}

// rw2r removed the monitoring of write events.
func (c *connection) rw2r() {
	c.operator.Control(EpollRW2R)
	c.triggerWrite(nil)
}

// flush write data directly.
func (c *connection) flush() error {
	if c.outputBuffer.IsEmpty() {
		return nil
	}
	var bs = c.outputBuffer.PeekAll(c.outputBarrier.bs[:0])
	var n, err = sendmsg(c.fd, bs, c.outputBarrier.ivs, false && c.supportZeroCopy)
	if err != nil && err != syscall.EAGAIN {
		return fmt.Errorf("flush: %v", err)
	}
	if n > 0 {
		if _, err = c.outputBuffer.Drain(n); err != nil {
			return fmt.Errorf("flush: %v", err)
		}
	}
	// return if write all buffer.
	if c.outputBuffer.IsEmpty() {
		return nil
	}
	err = c.operator.Control(EpollR2RW)
	if err != nil {
		return fmt.Errorf("flush: %v", err)
	}
	err = <-c.writeTrigger
	if err != nil {
		return fmt.Errorf("flush: %v", err)
	}
	return nil
}
