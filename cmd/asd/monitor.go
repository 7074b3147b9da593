package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"asd_commerce/internal/domain"
)

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func newMonitorCmd(_ *rootOptions) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Terminal dashboard for a running asd serve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newClient(addr)
			if err := c.waitHealth(cmd.Context(), 10*time.Second); err != nil {
				return fmt.Errorf("asd health check failed: %w", err)
			}
			return runMonitor(cmd.Context(), c, interval)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "asd base URL")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	return cmd
}

func runMonitor(ctx context.Context, c *client, interval time.Duration) error {
	app := tview.NewApplication()

	tasksTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	tasksTable.SetTitle("Tasks (F5 refresh, F6 drain, F10 quit)").SetBorder(true)

	resultView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	resultView.SetTitle("Task").SetBorder(true)

	decisionsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	decisionsView.SetTitle("Decisions").SetBorder(true)

	salesView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	salesView.SetTitle("Sales").SetBorder(true)

	promptInput := tview.NewInputField().
		SetLabel("Collaboration prompt: ")
	promptInput.SetBorder(true).SetTitle("Enter = collaborate")

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf("Connected to %s | Ctrl+L prompt, Ctrl+T tasks", c.baseURL))

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(resultView, 0, 1, false).
		AddItem(salesView, 8, 0, false).
		AddItem(decisionsView, 0, 2, false)
	mainLayout := tview.NewFlex().
		AddItem(tasksTable, 0, 1, false).
		AddItem(right, 0, 1, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, false).
		AddItem(promptInput, 3, 0, true).
		AddItem(statusView, 3, 0, false)

	var lastTasks []domain.Task
	setStatusAsync := func(msg string) {
		app.QueueUpdateDraw(func() { statusView.SetText(msg) })
	}

	refresh := func() {
		tasks, err := c.listTasks()
		decisions, decErr := c.listDecisions(60)
		sales, salesErr := c.listSales()
		app.QueueUpdateDraw(func() {
			if err != nil {
				tasksTable.Clear()
				tasksTable.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("load error: %v", err)).SetTextColor(tview.Styles.ContrastSecondaryTextColor))
			} else {
				sort.Slice(tasks, func(i, j int) bool {
					return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
				})
				lastTasks = tasks
				renderTasksTable(tasksTable, tasks)
			}
			if decErr != nil {
				decisionsView.SetText(fmt.Sprintf("error: %v", decErr))
			} else {
				decisionsView.SetText(renderDecisions(decisions))
			}
			if salesErr != nil {
				salesView.SetText(fmt.Sprintf("error: %v", salesErr))
			} else {
				salesView.SetText(renderSales(sales))
			}
		})
	}

	promptInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		prompt := strings.TrimSpace(promptInput.GetText())
		if prompt == "" {
			return
		}
		promptInput.SetText("")
		statusView.SetText("Collaborating...")
		go func() {
			result, err := c.collaborate(prompt)
			if err != nil {
				setStatusAsync("Collaboration failed: " + err.Error())
			} else {
				setStatusAsync(result)
			}
			refresh()
		}()
	})

	tasksTable.SetSelectedFunc(func(row, _ int) {
		if row <= 0 || row > len(lastTasks) {
			return
		}
		resultView.SetText(renderTask(lastTasks[row-1]))
	})

	drain := func() {
		statusView.SetText("Draining queue...")
		go func() {
			n, err := c.run()
			if err != nil {
				setStatusAsync("Drain failed: " + err.Error())
			} else {
				setStatusAsync(fmt.Sprintf("Drained %d tasks", n))
			}
			refresh()
		}()
	}

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyF5:
			go refresh()
			return nil
		case tcell.KeyF6:
			drain()
			return nil
		case tcell.KeyCtrlL:
			app.SetFocus(promptInput)
			return nil
		case tcell.KeyCtrlT, tcell.KeyEscape:
			app.SetFocus(tasksTable)
			return nil
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		refresh()
		for {
			select {
			case <-ctx.Done():
				app.Stop()
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	return app.SetRoot(root, true).EnableMouse(true).SetFocus(promptInput).Run()
}

func renderTasksTable(table *tview.Table, tasks []domain.Task) {
	table.Clear()
	headers := []string{"Task", "Status", "Agent", "Pri", "Updated", "Description"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, t := range tasks {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(shortID(t.ID)))
		table.SetCell(row, 1, tview.NewTableCell(string(t.Status)).SetTextColor(statusColor(t.Status)))
		table.SetCell(row, 2, tview.NewTableCell(string(t.AgentType)))
		table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", t.Priority)))
		table.SetCell(row, 4, tview.NewTableCell(t.UpdatedAt.Format("15:04:05")))
		table.SetCell(row, 5, tview.NewTableCell(trimLine(t.Description, 64)))
	}
}

func statusColor(status domain.TaskStatus) tcell.Color {
	switch status {
	case domain.TaskStatusDone:
		return tcell.ColorGreen
	case domain.TaskStatusFailed:
		return tcell.ColorRed
	default:
		return tcell.ColorYellow
	}
}

func renderTask(t domain.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  priority=%d  status=%s\n", t.ID, t.AgentType, t.Priority, t.Status)
	b.WriteString(t.Description + "\n")
	if t.Result != "" {
		b.WriteString("\n[green]" + tview.Escape(t.Result) + "[-]\n")
	}
	if t.LastError != "" {
		b.WriteString("\n[red]" + tview.Escape(t.LastError) + "[-]\n")
	}
	return b.String()
}

func renderDecisions(items []domain.DecisionLog) string {
	if len(items) == 0 {
		return "No decisions"
	}
	var b strings.Builder
	for _, d := range items {
		fmt.Fprintf(&b, "[%s] %s %s\n  reason: %s\n",
			d.CreatedAt.Format("15:04:05"),
			d.Actor,
			d.Action,
			trimLine(d.Reason, 100),
		)
		if detail := decisionPayloadSummary(d.Payload); detail != "" {
			b.WriteString("  payload: " + trimLine(detail, 160) + "\n")
		}
	}
	return tview.Escape(b.String())
}

func renderSales(items []domain.SalesTotal) string {
	if len(items) == 0 {
		return "No deals closed"
	}
	var b strings.Builder
	for _, s := range items {
		fmt.Fprintf(&b, "%-24s deals=%d units=%d value=$%.2f\n", trimLine(s.Product, 24), s.Deals, s.Quantity, s.TotalValue)
	}
	return b.String()
}

func decisionPayloadSummary(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return ""
	}
	var kv map[string]any
	if err := json.Unmarshal(payload, &kv); err != nil {
		return trimmed
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, kv[k]))
	}
	return strings.Join(parts, ", ")
}

func (c *client) waitHealth(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var health map[string]any
		if err := c.getJSON("/healthz", &health); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(400 * time.Millisecond):
		}
	}
	return fmt.Errorf("timeout waiting for /healthz")
}

func (c *client) listTasks() ([]domain.Task, error) {
	var out []domain.Task
	if err := c.getJSON("/tasks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) listDecisions(limit int) ([]domain.DecisionLog, error) {
	var out []domain.DecisionLog
	if err := c.getJSON(fmt.Sprintf("/decisions?limit=%d", limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) listSales() ([]domain.SalesTotal, error) {
	var out []domain.SalesTotal
	if err := c.getJSON("/sales", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) collaborate(prompt string) (string, error) {
	var out struct {
		Result string `json:"result"`
	}
	if err := c.postJSON("/collaborate", map[string]string{"prompt": prompt}, &out); err != nil {
		return "", err
	}
	return out.Result, nil
}

func (c *client) run() (int, error) {
	var out struct {
		Processed int `json:"processed"`
	}
	if err := c.postJSON("/run", nil, &out); err != nil {
		return 0, err
	}
	return out.Processed, nil
}

func (c *client) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) postJSON(path string, in any, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("http %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func trimLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func shortID(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}
