package nca

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/blas/blas32"
)

// parallelThreshold is the minimum cell count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 1024

// rowScratch holds per-worker reusable buffers for one grid row.
type rowScratch struct {
	x      blas32.General // W × In
	hidden blas32.General // W × Hidden
	delta  blas32.General // W × C
}

func newRowScratch(w int, n *UpdateNet) rowScratch {
	return rowScratch{
		x:      blas32.General{Rows: w, Cols: n.In, Stride: n.In, Data: make([]float32, w*n.In)},
		hidden: blas32.General{Rows: w, Cols: n.Hidden, Stride: n.Hidden, Data: make([]float32, w*n.Hidden)},
		delta:  blas32.General{Rows: w, Cols: n.C, Stride: n.C, Data: make([]float32, w*n.C)},
	}
}

// roundJob is the read-only input of one automaton round.
type roundJob struct {
	cur   *State
	next  *State
	feats []float32
	mask  []bool
	bound float32
}

// rowChunk is a range of rows for a worker to process.
type rowChunk struct {
	start, end int
	job        *roundJob
}

// rowPool runs automaton rounds over persistent worker goroutines.
type rowPool struct {
	net        *UpdateNet
	width      int
	scratches  []rowScratch
	numWorkers int

	workChan chan rowChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newRowPool(net *UpdateNet, width int) *rowPool {
	numWorkers := runtime.GOMAXPROCS(0)
	scratches := make([]rowScratch, numWorkers)
	for i := range scratches {
		scratches[i] = newRowScratch(width, net)
	}
	return &rowPool{
		net:        net,
		width:      width,
		scratches:  scratches,
		numWorkers: numWorkers,
	}
}

func (p *rowPool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan rowChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *rowPool) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *rowPool) worker(id int) {
	defer p.wg.Done()
	scratch := &p.scratches[id]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			for y := chunk.start; y < chunk.end; y++ {
				p.net.stepRow(chunk.job, y, scratch)
			}
			p.doneChan <- struct{}{}
		}
	}
}

// run executes one round, choosing inline or pooled execution by size.
func (p *rowPool) run(job *roundJob) {
	h := job.cur.H
	if job.cur.W*h < parallelThreshold {
		scratch := &p.scratches[0]
		for y := 0; y < h; y++ {
			p.net.stepRow(job, y, scratch)
		}
		return
	}

	if !p.running {
		p.startWorkers()
	}

	chunkSize := (h + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, h)
		if start >= end {
			continue
		}
		p.workChan <- rowChunk{start: start, end: end, job: job}
		dispatched++
	}
	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}

// stepRow updates row y of job.next from job.cur. Cells whose mask bit is
// false are copied unchanged.
func (n *UpdateNet) stepRow(job *roundJob, y int, sc *rowScratch) {
	cur, next := job.cur, job.next
	w, c := cur.W, cur.C
	p := PerceptionSize(c)

	for x := 0; x < w; x++ {
		in := sc.x.Data[x*n.In : (x+1)*n.In]
		perceiveCell(cur, x, y, in[:p])
		fi := (y*w + x) * NumGoalFeatures
		copy(in[p:], job.feats[fi:fi+NumGoalFeatures])
	}

	n.forwardRows(sc.x, sc.hidden, sc.delta)

	for x := 0; x < w; x++ {
		src := cur.Cell(x, y)
		dst := next.Cell(x, y)
		if !job.mask[y*w+x] {
			copy(dst, src)
			continue
		}
		d := sc.delta.Data[x*c : (x+1)*c]
		for k, v := range src {
			dst[k] = clampf(v+d[k], job.bound)
		}
	}
}
