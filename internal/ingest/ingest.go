// Package ingest 抓取 HTML 形式的实习职位表格（公司 | 岗位 | 地点 | 链接 | 发布时长）并转换为职位记录。
package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"jobhill/internal/model"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"
)

const (
	markInherit   = "↳"
	markClosed    = "🔒"
	markNoSponsor = "🛂"
	markCitizen   = "🇺🇸"
)

// Source 一个职位表格页面。
type Source struct {
	URL    string `yaml:"url" json:"url"`
	Period string `yaml:"period" json:"period"`
}

// Rule 关键字分类规则，标题命中 Any 中任意一项即打上 Tag。
type Rule struct {
	Tag string   `yaml:"tag" json:"tag"`
	Any []string `yaml:"any" json:"any"`
}

// Config 定义抓取配置。
type Config struct {
	Sources    []Source `yaml:"sources" json:"sources"`
	MaxAgeDays int      `yaml:"max_age_days" json:"max_age_days"`
	ReqPerSec  float64  `yaml:"req_per_sec" json:"req_per_sec"`
	Categories []Rule   `yaml:"categories" json:"categories"`
}

// Posting 抓取到的一条职位，公司尚未解析为 ID。
type Posting struct {
	Company string
	Job     model.JobOffer
}

// JobFetcher 抓取统一接口。
type JobFetcher interface {
	Fetch(ctx context.Context) ([]Posting, error)
}

// TableFetcher 抓取并解析职位表格。
type TableFetcher struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time
	logger  *log.Logger
}

// DefaultRules 未配置分类规则时使用。
var DefaultRules = []Rule{
	{Tag: "SWE", Any: []string{"software", "engineer", "developer", "backend", "frontend", "full stack", "mobile"}},
	{Tag: "Data", Any: []string{"data", "machine learning", "ml ", "ai ", "analytics", "research"}},
	{Tag: "Quant", Any: []string{"quant", "trading", "trader"}},
	{Tag: "PM", Any: []string{"product manager", "product management", "program manager"}},
	{Tag: "Hardware", Any: []string{"hardware", "electrical", "embedded", "firmware", "fpga"}},
}

// NewTableFetcher 创建抓取器。
func NewTableFetcher(cfg Config, client *http.Client) *TableFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 120
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultRules
	}
	limit := rate.Inf
	if cfg.ReqPerSec > 0 {
		limit = rate.Limit(cfg.ReqPerSec)
	}
	return &TableFetcher{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		logger:  log.New(os.Stdout, "[ingest] ", log.LstdFlags),
	}
}

// Fetch 依次抓取所有来源，按链接去重，超过 MaxAgeDays 的职位被丢弃。
func (f *TableFetcher) Fetch(ctx context.Context) ([]Posting, error) {
	cutoff := f.now().AddDate(0, 0, -f.cfg.MaxAgeDays)
	postings := make([]Posting, 0)
	seen := make(map[string]struct{})

	f.logf("start fetch: sources=%d max_age_days=%d", len(f.cfg.Sources), f.cfg.MaxAgeDays)

	for _, src := range f.cfg.Sources {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate wait: %w", err)
		}
		body, err := f.get(ctx, src.URL)
		if err != nil {
			return nil, err
		}

		rows, err := parseTable(body)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", src.URL, err)
		}

		accepted := 0
		for _, row := range rows {
			p := f.toPosting(row, src)
			if p.Job.CreatedAt.Before(cutoff) {
				continue
			}
			if _, dup := seen[p.Job.ID]; dup {
				continue
			}
			seen[p.Job.ID] = struct{}{}
			postings = append(postings, p)
			accepted++
		}
		f.logf("source=%s parsed_rows=%d accepted=%d", src.URL, len(rows), accepted)
	}

	f.logf("fetch done total_postings=%d", len(postings))
	return postings, nil
}

func (f *TableFetcher) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

func (f *TableFetcher) toPosting(r row, src Source) Posting {
	title := cleanTitle(r.role)
	job := model.JobOffer{
		JobTitle:   title,
		Location:   datatypes.JSONSlice[string](r.locations),
		Modality:   modalityOf(r.locations),
		Period:     src.Period,
		Categories: datatypes.JSONSlice[string](categorize(title, f.cfg.Categories)),
		Status:     model.StatusOpen,
		URL:        r.link,
		CreatedAt:  f.now().Add(-parseAge(r.age)),
	}
	if r.closed {
		job.Status = model.StatusClosed
	}
	if strings.Contains(r.role, markNoSponsor) {
		job.NoSponsor = 1
	}
	if strings.Contains(r.role, markCitizen) {
		job.USACitizen = 1
	}
	lower := strings.ToLower(title)
	if strings.Contains(lower, "new grad") {
		job.NewGrad = 1
	}
	if strings.Contains(lower, "emerging talent") {
		job.EmergingTalent = 1
	}
	job.ID = JobID(r.company, title, r.link)
	return Posting{Company: r.company, Job: job}
}

// JobID 由投递链接生成稳定 ID，没有链接时退回公司与标题。
func JobID(company, title, link string) string {
	key := link
	if key == "" {
		key = "jobhill:" + strings.ToLower(company) + "|" + strings.ToLower(title)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func (f *TableFetcher) logf(format string, args ...any) {
	if f.logger == nil {
		f.logger = log.New(os.Stdout, "[ingest] ", log.LstdFlags)
	}
	f.logger.Printf(format, args...)
}

type row struct {
	company   string
	role      string
	locations []string
	link      string
	age       string
	closed    bool
}

// parseTable 解析页面中第一个含数据行的表格。↳ 行沿用上一行的公司。
func parseTable(htmlText string) ([]row, error) {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	table := findElement(doc, "table")
	if table == nil {
		return nil, fmt.Errorf("table not found")
	}

	var rows []row
	prevCompany := ""
	for _, tr := range findAll(table, "tr") {
		cells := findAllShallow(tr, "td")
		if len(cells) < 4 {
			continue
		}
		company := strings.TrimSpace(textOf(cells[0]))
		if company == markInherit || company == "" {
			company = prevCompany
		}
		if company == "" {
			continue
		}
		prevCompany = company

		r := row{
			company:   company,
			role:      strings.TrimSpace(textOf(cells[1])),
			locations: locationsOf(cells[2]),
			link:      firstHref(cells[3]),
		}
		if len(cells) > 4 {
			r.age = strings.TrimSpace(textOf(cells[4]))
		}
		r.closed = r.link == "" || strings.Contains(textOf(cells[3]), markClosed) || strings.Contains(r.role, markClosed)
		rows = append(rows, r)
	}
	return rows, nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findAllShallow(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
		}
	}
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// locationsOf 按 <br> 与文本节点拆分地点，忽略 <summary> 中的 "N locations" 摘要。
func locationsOf(cell *html.Node) []string {
	locations := make([]string, 0)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "summary" {
			return
		}
		if n.Type == html.TextNode {
			for _, part := range strings.Split(n.Data, "\n") {
				if part = strings.TrimSpace(part); part != "" {
					locations = append(locations, part)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(cell)
	return locations
}

func firstHref(n *html.Node) string {
	if a := findElement(n, "a"); a != nil {
		for _, attr := range a.Attr {
			if attr.Key == "href" {
				return strings.TrimSpace(attr.Val)
			}
		}
	}
	return ""
}

func cleanTitle(role string) string {
	for _, mark := range []string{markNoSponsor, markCitizen, markClosed} {
		role = strings.ReplaceAll(role, mark, "")
	}
	return strings.Join(strings.Fields(role), " ")
}

func modalityOf(locations []string) string {
	joined := strings.ToLower(strings.Join(locations, " "))
	switch {
	case strings.Contains(joined, "remote"):
		return "Remote"
	case strings.Contains(joined, "hybrid"):
		return "Hybrid"
	default:
		return "Onsite"
	}
}

func categorize(title string, rules []Rule) []string {
	text := " " + strings.ToLower(title) + " "
	tags := make([]string, 0)
	for _, r := range rules {
		for _, needle := range r.Any {
			if strings.Contains(text, strings.ToLower(needle)) {
				tags = append(tags, r.Tag)
				break
			}
		}
	}
	return tags
}

// parseAge 解析 "3d"、"2w"、"1mo" 形式的发布时长，无法识别时视为刚发布。
func parseAge(s string) time.Duration {
	s = strings.ToLower(strings.TrimSpace(s))
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0
	}
	day := 24 * time.Hour
	switch strings.TrimSpace(s[i:]) {
	case "h":
		return time.Duration(n) * time.Hour
	case "d":
		return time.Duration(n) * day
	case "w":
		return time.Duration(n) * 7 * day
	case "mo":
		return time.Duration(n) * 30 * day
	case "y":
		return time.Duration(n) * 365 * day
	default:
		return 0
	}
}
