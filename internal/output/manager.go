// Package output renders task progress in the terminal: one line per
// task with a status indicator, progress bar and size label, redrawn on a
// fixed tick, plus an end-of-run summary.
package output

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type TaskRow struct {
	ID          string
	Title       string
	Status      string
	Percent     float64
	SizeLabel   string
	Message     string
	Complete    bool
	Failed      bool
	StartTime   time.Time
	LastUpdated time.Time
	Index       int
}

type Manager struct {
	rows      map[string]*TaskRow
	mutex     sync.RWMutex
	numLines  int
	doneCh    chan struct{}
	tick      time.Duration
	displayWg sync.WaitGroup
	count     int
}

func NewManager() *Manager {
	return &Manager{
		rows:   make(map[string]*TaskRow),
		doneCh: make(chan struct{}),
		tick:   300 * time.Millisecond,
	}
}

// Register adds a display row for a task. The title starts as the URL
// until the metadata probe resolves a real one.
func (m *Manager) Register(id, title string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.count++
	m.rows[id] = &TaskRow{
		ID:          id,
		Title:       title,
		Status:      "pending",
		SizeLabel:   "Unknown",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Index:       m.count,
	}
}

func (m *Manager) SetTitle(id, title string) {
	m.update(id, func(r *TaskRow) { r.Title = title })
}

func (m *Manager) SetSize(id, label string) {
	m.update(id, func(r *TaskRow) { r.SizeLabel = label })
}

func (m *Manager) SetProgress(id string, percent float64, status string) {
	m.update(id, func(r *TaskRow) {
		r.Percent = percent
		r.Status = status
	})
}

func (m *Manager) Complete(id string) {
	m.update(id, func(r *TaskRow) {
		r.Percent = 100
		r.Status = "success"
		r.Complete = true
		r.Message = fmt.Sprintf("Completed %s", r.Title)
	})
}

func (m *Manager) ReportError(id, message string) {
	m.update(id, func(r *TaskRow) {
		r.Status = "error"
		r.Complete = true
		r.Failed = true
		r.Message = message
	})
}

func (m *Manager) ReportCancelled(id string) {
	m.update(id, func(r *TaskRow) {
		r.Status = "cancelled"
		r.Complete = true
		r.Message = fmt.Sprintf("Cancelled %s", r.Title)
	})
}

func (m *Manager) update(id string, fn func(*TaskRow)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if row, exists := m.rows[id]; exists {
		fn(row)
		row.LastUpdated = time.Now()
	}
}

func (m *Manager) statusIndicator(row *TaskRow) string {
	switch row.Status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "cancelled":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (m *Manager) sortedRows() []*TaskRow {
	rows := make([]*TaskRow, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Index < rows[j].Index
	})
	return rows
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	availableLines := terminalHeight() - 3
	if m.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", m.numLines)
	}

	lineCount := 0
	for _, row := range m.sortedRows() {
		if lineCount >= availableLines {
			break
		}
		indicator := m.statusIndicator(row)
		elapsed := time.Since(row.StartTime).Round(time.Second)
		if row.Complete {
			elapsed = row.LastUpdated.Sub(row.StartTime).Round(time.Second)
		}
		var detail string
		switch {
		case row.Failed:
			detail = errorStyle.Render("Error: " + row.Message)
		case row.Complete && row.Status == "success":
			detail = successStyle.Render(row.Message)
		case row.Complete:
			detail = warningStyle.Render(row.Message)
		default:
			detail = fmt.Sprintf("%s %s %s",
				ProgressBar(row.Percent, 30),
				debugStyle.Render(row.Status),
				debugStyle.Render(row.SizeLabel))
		}
		title := truncate(row.Title, 40)
		fmt.Printf("  %s %s %s %s\n", indicator, debugStyle.Render(elapsed.String()), pendingStyle.Render(title), detail)
		lineCount++
	}
	m.numLines = lineCount
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Println()
	var success, failures, cancelled int
	for _, row := range m.rows {
		switch row.Status {
		case "success":
			success++
		case "error":
			failures++
		case "cancelled":
			cancelled++
		}
	}
	fmt.Println("  " + successStyle.Render(fmt.Sprintf("Completed %d of %d", success, len(m.rows))))
	if cancelled > 0 {
		fmt.Println("  " + warningStyle.Render(fmt.Sprintf("Cancelled %d of %d", cancelled, len(m.rows))))
	}
	if failures > 0 {
		fmt.Println("  " + errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.rows))))
		for _, row := range m.sortedRows() {
			if row.Failed {
				fmt.Printf("    %s %s\n", errorStyle.Render(row.Title+":"), errorStyle.Render(row.Message))
			}
		}
	}
	fmt.Println()
}

// truncate keeps multi-byte titles intact when shortening for display.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
