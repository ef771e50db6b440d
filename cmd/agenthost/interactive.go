package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tjfontaine/agent-in-a-browser-sub010/host"
	"github.com/tjfontaine/agent-in-a-browser-sub010/loader"
	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	entryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type handleRow struct {
	handle registry.Handle
	typeID registry.TypeID
}

type spawnResultMsg struct {
	err  error
	name string
	code uint32
}

type inspectorModel struct {
	h       *host.Host
	input   textinput.Model
	handles []handleRow
	modules []string
	last    string
	lastErr error
	busy    bool
}

func newInspectorModel(h *host.Host, seed string) *inspectorModel {
	in := textinput.New()
	in.Placeholder = "command [args...]"
	if seed != "" {
		in.Placeholder = seed + " [args...]"
	}
	in.Focus()
	m := &inspectorModel{h: h, input: in}
	m.refresh()
	return m
}

func (m *inspectorModel) refresh() {
	m.handles = m.handles[:0]
	m.h.Registry().Each(func(hd registry.Handle, t registry.TypeID, _ any) bool {
		m.handles = append(m.handles, handleRow{handle: hd, typeID: t})
		return true
	})
	sort.Slice(m.handles, func(i, j int) bool { return m.handles[i].handle < m.handles[j].handle })
	m.modules = m.h.Loader().Loaded()
	sort.Strings(m.modules)
}

func (m *inspectorModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *inspectorModel) spawn(line string) tea.Cmd {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	name, args := parts[0], parts[1:]
	h := m.h
	return func() tea.Msg {
		ctx := context.Background()
		handle, err := h.Loader().Spawn(ctx, name, loader.SpawnConfig{
			Args: append([]string{name}, args...),
		})
		if err != nil {
			return spawnResultMsg{name: name, err: err}
		}
		code, err := handle.Wait(ctx)
		return spawnResultMsg{name: name, code: code, err: err}
	}
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.busy {
				return m, nil
			}
			line := m.input.Value()
			m.input.SetValue("")
			m.busy = true
			return m, m.spawn(line)
		}
	case spawnResultMsg:
		m.busy = false
		m.lastErr = msg.err
		if msg.err == nil {
			m.last = fmt.Sprintf("%s exited %d", msg.name, msg.code)
		}
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *inspectorModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("agenthost inspector"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Mode: %s", m.h.Bridge().Mode())))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Live handles (%d)", len(m.handles))))
	b.WriteString("\n")
	if len(m.handles) == 0 {
		b.WriteString(helpStyle.Render("  none"))
		b.WriteString("\n")
	}
	for _, row := range m.handles {
		b.WriteString(entryStyle.Render(fmt.Sprintf("  #%d  %s", row.handle, row.typeID)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Compiled modules (%d)", len(m.modules))))
	b.WriteString("\n")
	if len(m.modules) == 0 {
		b.WriteString(helpStyle.Render("  none"))
		b.WriteString("\n")
	}
	for _, name := range m.modules {
		b.WriteString(entryStyle.Render("  " + name))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.busy {
		b.WriteString(helpStyle.Render("running..."))
		b.WriteString("\n")
	} else if m.lastErr != nil {
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	} else if m.last != "" {
		b.WriteString(resultStyle.Render(m.last))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter: spawn  esc: quit"))
	return b.String()
}

func runInteractive(cfg host.Config, wasmFile string) error {
	ctx := context.Background()

	opts := []host.Option{}
	seed := ""
	if wasmFile != "" {
		data, err := os.ReadFile(wasmFile)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		seed = strings.TrimSuffix(filepath.Base(wasmFile), ".wasm")
		opts = append(opts, host.WithSource(loader.MapSource{seed: data}))
	}

	h, err := host.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer h.Close(ctx)

	if seed != "" {
		if _, err := h.Loader().GetModule(ctx, seed); err != nil {
			return fmt.Errorf("compile %s: %w", seed, err)
		}
	}

	p := tea.NewProgram(newInspectorModel(h, seed))
	_, err = p.Run()
	return err
}
