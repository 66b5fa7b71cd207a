package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pot-code/speedread/internal/infrastructure/uuid"
	"github.com/pot-code/speedread/internal/progress"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	defaultReportWidth = 80
	recentWeeks        = 8
	minBarWidth        = 10
)

var statsTop int

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [user-id]",
		Short: "Print the reading progress of a user, or the leaderboard with --top",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStats,
	}
	cmd.Flags().IntVar(&statsTop, "top", 0, "print the N fastest readers instead of a user report")
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsTop <= 0 && len(args) == 0 {
		return errors.New("a user id or --top is required")
	}
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	generator, err := uuid.NewGenerator(cfg.Security.IDKind, cfg.Security.IDLength)
	if err != nil {
		return err
	}
	catalog, err := progress.LoadCatalog(cfg.Engine.AchievementsFile)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStorage(ctx, cfg, generator, logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	ProgressUseCase := progress.NewProgressUseCase(store.Progress, progress.NewAggregator(cfg.Location()), catalog, cfg.Engine.MaxRetries)
	out := cmd.OutOrStdout()
	r := newReport(out)
	if statsTop > 0 {
		entries, err := ProgressUseCase.Leaderboard(ctx, statsTop)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, r.Leaderboard(entries))
		return nil
	}

	p, err := ProgressUseCase.GetProgress(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, r.Progress(p, ProgressUseCase.Catalog()))
	return nil
}

// report renders progress for a terminal, colors are dropped when w is not one
type report struct {
	width int

	title lipgloss.Style
	card  lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	muted lipgloss.Style
	bar   lipgloss.Style
	done  lipgloss.Style
}

func newReport(w io.Writer) *report {
	renderer := lipgloss.NewRenderer(w)
	width := defaultReportWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			width = tw
		}
	}

	return &report{
		width: width,
		title: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#5EEBFF")).MarginBottom(1),
		card: renderer.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A")),
		label: renderer.NewStyle().Foreground(lipgloss.Color("#8C8C8C")),
		value: renderer.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true),
		muted: renderer.NewStyle().Foreground(lipgloss.Color("#6E6E6E")),
		bar:   renderer.NewStyle().Foreground(lipgloss.Color("#C89A3A")),
		done:  renderer.NewStyle().Foreground(lipgloss.Color("#67F0A8")),
	}
}

func (r *report) cardOf(label, value string) string {
	return r.card.Render(r.label.Render(label) + "\n" + r.value.Render(value))
}

// Progress lifetime statistics, recent weeks and the achievement catalog of p
func (r *report) Progress(p *progress.UserProgress, catalog progress.Catalog) string {
	st := p.Statistics
	sections := []string{r.title.Render("Reading progress of " + p.UserID)}

	if st.TotalSessions == 0 {
		sections = append(sections, r.muted.Render("No reading sessions yet."))
	} else {
		cards := lipgloss.JoinHorizontal(lipgloss.Top,
			r.cardOf("Sessions", fmt.Sprintf("%d", st.TotalSessions)),
			r.cardOf("Avg WPM", fmt.Sprintf("%.1f", st.AverageWPM)),
			r.cardOf("Best WPM", fmt.Sprintf("%d", st.BestWPM)),
			r.cardOf("Comprehension", fmt.Sprintf("%.1f%%", st.AverageComprehension)),
			r.cardOf("Reading time", fmt.Sprintf("%.0f min", st.TotalReadingTimeMinutes)),
			r.cardOf("Streak", fmt.Sprintf("%d / %d days", st.CurrentStreak, st.LongestStreak)),
		)
		sections = append(sections, cards, r.weeks(p.WeeklyBuckets))
	}

	if goals := r.goals(p.Goals); goals != "" {
		sections = append(sections, goals)
	}
	sections = append(sections, r.achievements(p, catalog))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (r *report) weeks(buckets []progress.WeeklyBucket) string {
	if len(buckets) > recentWeeks {
		buckets = buckets[len(buckets)-recentWeeks:]
	}
	var peak float64
	for _, b := range buckets {
		if b.AverageWPM > peak {
			peak = b.AverageWPM
		}
	}
	barWidth := r.width - 40
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}

	lines := []string{r.label.Render("Weekly average speed")}
	for _, b := range buckets {
		n := 0
		if peak > 0 {
			n = int(b.AverageWPM / peak * float64(barWidth))
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			r.muted.Render(b.WeekStart.Format("2006-01-02")),
			r.bar.Render(strings.Repeat("█", n)+strings.Repeat(" ", barWidth-n)),
			fmt.Sprintf("%6.1f wpm  %2d sessions", b.AverageWPM, b.SessionsCount),
		))
	}
	return "\n" + strings.Join(lines, "\n")
}

func (r *report) goals(g progress.Goals) string {
	var parts []string
	if g.TargetWPM > 0 {
		parts = append(parts, fmt.Sprintf("%d wpm", g.TargetWPM))
	}
	if g.TargetComprehension > 0 {
		parts = append(parts, fmt.Sprintf("%.0f%% comprehension", g.TargetComprehension))
	}
	if g.DailyReadingMinutes > 0 {
		parts = append(parts, fmt.Sprintf("%d min a day", g.DailyReadingMinutes))
	}
	if g.WeeklySessions > 0 {
		parts = append(parts, fmt.Sprintf("%d sessions a week", g.WeeklySessions))
	}
	if len(parts) == 0 {
		return ""
	}
	return "\n" + r.label.Render("Goals: ") + strings.Join(parts, ", ")
}

func (r *report) achievements(p *progress.UserProgress, catalog progress.Catalog) string {
	lines := []string{"", r.label.Render(fmt.Sprintf("Achievements %d/%d", len(p.Achievements), len(catalog)))}
	for _, rule := range catalog {
		if p.HasAchievement(rule.ID) {
			lines = append(lines, r.done.Render("✓ "+rule.Name))
		} else {
			lines = append(lines, r.muted.Render("· "+rule.Name))
		}
	}
	return strings.Join(lines, "\n")
}

// Leaderboard ranking table
func (r *report) Leaderboard(entries []*progress.LeaderboardEntry) string {
	if len(entries) == 0 {
		return r.muted.Render("Nobody has finished a session yet.")
	}
	lines := []string{
		r.title.Render("Leaderboard"),
		r.label.Render(fmt.Sprintf("%4s  %-24s %9s %8s %8s", "#", "user", "avg wpm", "best", "sessions")),
	}
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%4d  %-24s %9.1f %8d %8d", i+1, e.UserID, e.AverageWPM, e.BestWPM, e.TotalSessions))
	}
	return strings.Join(lines, "\n")
}
