package graphrag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

type call struct {
	cypher string
	params map[string]any
}

type fakeSession struct {
	fulltext  map[string][]Record // by index name
	ftErr     map[string]error
	all         []Record
	allErr      error
	neighbors   []Record
	neighborErr error
	indexErr    error

	calls  []call
	closed bool
}

func (f *fakeSession) Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	f.calls = append(f.calls, call{cypher: cypher, params: params})
	switch {
	case strings.HasPrefix(cypher, "CREATE FULLTEXT INDEX"):
		return nil, f.indexErr
	case strings.Contains(cypher, "db.index.fulltext.queryNodes"):
		idx, _ := params["index"].(string)
		if err := f.ftErr[idx]; err != nil {
			return nil, err
		}
		return f.fulltext[idx], nil
	case strings.Contains(cypher, "OPTIONAL MATCH"):
		return f.neighbors, f.neighborErr
	case strings.HasPrefix(cypher, "MATCH (n) WHERE ANY"):
		return f.all, f.allErr
	}
	return nil, errors.New("unexpected cypher: " + cypher)
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeSession) count(substr string) int {
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c.cypher, substr) {
			n++
		}
	}
	return n
}

type fakeStore struct {
	sess   *fakeSession
	opened int
}

func (s *fakeStore) Session(ctx context.Context) (Session, error) {
	s.opened++
	return s.sess, nil
}

func newEngine(t *testing.T, sess *fakeSession) (*Engine, *fakeStore) {
	t.Helper()
	store := &fakeStore{sess: sess}
	e, err := New(store, config.RetrievalConfig{}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, store
}

func ftRow(id int64, label, title, body string, score float64) Record {
	return Record{"id": id, "label": label, "title": title, "body": body, "score": score}
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	for _, q := range []string{"", "   \n\t"} {
		sess := &fakeSession{}
		e, store := newEngine(t, sess)
		_, err := e.Query(context.Background(), Request{Question: q})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("q=%q err=%v", q, err)
		}
		if store.opened != 0 || len(sess.calls) != 0 {
			t.Fatalf("store touched for empty question")
		}
	}
}

func TestQueryRanksAcrossLabels(t *testing.T) {
	sess := &fakeSession{
		fulltext: map[string][]Record{
			"nodeText_Diagnosis":  {ftRow(1, "Diagnosis", "A", "", 0.9), ftRow(3, "Diagnosis", "C", "", 0.4)},
			"nodeText_Medication": {ftRow(2, "Medication", "B", "", 0.9)},
		},
		ftErr: map[string]error{"nodeText_TestResult": errors.New("no such index")},
	}
	e, _ := newEngine(t, sess)

	resp, err := e.Query(context.Background(), Request{Question: "a b", TopK: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(resp.TopNodes) != 2 {
		t.Fatalf("top=%+v", resp.TopNodes)
	}
	got := map[string]bool{}
	for _, n := range resp.TopNodes {
		got[n.Title] = true
	}
	if !got["A"] || !got["B"] || got["C"] {
		t.Fatalf("top=%+v", resp.TopNodes)
	}
	if sess.count("MATCH (n) WHERE ANY") != 0 {
		t.Fatalf("substring fallback must not run when full-text found rows")
	}
	if !sess.closed {
		t.Fatalf("session not closed")
	}
	for _, c := range sess.calls {
		if strings.Contains(c.cypher, "queryNodes") && c.params["k"] != int64(2) {
			t.Fatalf("full-text limit=%v", c.params["k"])
		}
	}
}

func TestQueryKeepsBestScorePerNode(t *testing.T) {
	sess := &fakeSession{
		fulltext: map[string][]Record{
			"nodeText_Diagnosis": {ftRow(7, "Diagnosis", "Anemia", "low", 0.2)},
			"nodeText_Entity":    {ftRow(7, "Diagnosis", "Anemia", "low", 0.7), ftRow(8, "Entity", "Iron", "", 0.5)},
		},
	}
	e, _ := newEngine(t, sess)
	resp, err := e.Query(context.Background(), Request{Question: "anemia"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(resp.TopNodes) != 2 || resp.TopNodes[0].NodeID != 7 || resp.TopNodes[0].Score != 0.7 {
		t.Fatalf("top=%+v", resp.TopNodes)
	}
}

func TestQueryFallsBackToSubstringOnce(t *testing.T) {
	sess := &fakeSession{
		indexErr: errors.New("fulltext unsupported"),
		ftErr: map[string]error{
			"nodeText_Diagnosis": errors.New("x"), "nodeText_Medication": errors.New("x"),
			"nodeText_TestResult": errors.New("x"), "nodeText_Entity": errors.New("x"),
		},
		all: []Record{
			{"id": int64(1), "label": "Diagnosis", "title": "Type 2 Diabetes", "body": "Diabetes   mellitus, on metformin"},
			{"id": int64(2), "label": "Medication", "title": "Metformin", "body": nil},
			{"id": int64(3), "label": "Entity", "title": "Unrelated", "body": "nothing"},
		},
	}
	e, _ := newEngine(t, sess)

	resp, err := e.Query(context.Background(), Request{Question: "  Diabetes METFORMIN "})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if sess.count("MATCH (n) WHERE ANY") != 1 {
		t.Fatalf("substring fallback should run exactly once")
	}
	if len(resp.TopNodes) != 2 {
		t.Fatalf("top=%+v", resp.TopNodes)
	}
	if resp.TopNodes[0].NodeID != 1 || resp.TopNodes[0].Score != 3 {
		t.Fatalf("first=%+v", resp.TopNodes[0])
	}
	if resp.TopNodes[1].NodeID != 2 || resp.TopNodes[1].Score != 1 || resp.TopNodes[1].Body != "" {
		t.Fatalf("second=%+v", resp.TopNodes[1])
	}
	for _, c := range sess.calls {
		if strings.HasPrefix(c.cypher, "MATCH (n) WHERE ANY") && c.params["labels"] != "Diagnosis|Medication|TestResult|Entity" {
			t.Fatalf("labels=%v", c.params["labels"])
		}
	}
}

func TestQueryIncludeTypesRestrictsLabels(t *testing.T) {
	sess := &fakeSession{}
	e, _ := newEngine(t, sess)
	if _, err := e.Query(context.Background(), Request{Question: "x", IncludeTypes: []string{" Medication ", ""}}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if n := sess.count("queryNodes"); n != 1 {
		t.Fatalf("full-text queries=%d", n)
	}
	if n := sess.count("CREATE FULLTEXT INDEX"); n != 4 {
		t.Fatalf("index ensures=%d", n)
	}
}

func TestQueryNeighborCapIsCombined(t *testing.T) {
	sess := &fakeSession{
		fulltext: map[string][]Record{
			"nodeText_Diagnosis": {ftRow(1, "Diagnosis", "A", "", 0.9), ftRow(2, "Diagnosis", "B", "", 0.8)},
		},
		neighbors: []Record{
			{"src_id": int64(1), "src_label": "Diagnosis", "src_title": "A", "nbr_id": int64(5), "nbr_label": "Medication", "nbr_title": "M", "rel_props": map[string]any{"weight": 0.9}},
		},
	}
	e, _ := newEngine(t, sess)
	resp, err := e.Query(context.Background(), Request{Question: "a", NeighborK: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if n := sess.count("OPTIONAL MATCH"); n != 1 {
		t.Fatalf("neighbor queries=%d", n)
	}
	for _, c := range sess.calls {
		if !strings.Contains(c.cypher, "OPTIONAL MATCH") {
			continue
		}
		ids, _ := c.params["ids"].([]int64)
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Fatalf("ids=%v", c.params["ids"])
		}
		if c.params["k"] != int64(3) {
			t.Fatalf("k=%v", c.params["k"])
		}
		if !strings.Contains(c.cypher, "ORDER BY coalesce(r.weight, 1.0) DESC LIMIT $k RETURN") {
			t.Fatalf("neighbor cap must apply to the whole result: %s", c.cypher)
		}
	}
	if len(resp.NeighborRows) != 1 || resp.NeighborRows[0].NbrID == nil || *resp.NeighborRows[0].NbrID != 5 {
		t.Fatalf("rows=%+v", resp.NeighborRows)
	}
}

func TestQueryNoNodesSkipsNeighbors(t *testing.T) {
	sess := &fakeSession{}
	e, _ := newEngine(t, sess)
	resp, err := e.Query(context.Background(), Request{Question: "nothing matches"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if sess.count("OPTIONAL MATCH") != 0 {
		t.Fatalf("neighbor query should not run without nodes")
	}
	if resp.Context != "Relevant Nodes:" || len(resp.TopNodes) != 0 || resp.NeighborRows == nil {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestQueryClosesSessionOnError(t *testing.T) {
	refused := errors.New("connection refused")
	cases := []struct {
		name string
		sess *fakeSession
	}{
		{name: "substring search fails", sess: &fakeSession{allErr: refused}},
		{
			name: "neighbor lookup fails",
			sess: &fakeSession{
				fulltext:    map[string][]Record{"nodeText_Diagnosis": {ftRow(1, "Diagnosis", "Gout", "", 0.8)}},
				neighborErr: refused,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, store := newEngine(t, tc.sess)
			_, err := e.Query(context.Background(), Request{Question: "gout"})
			if !errors.Is(err, refused) {
				t.Fatalf("err got=%v want=%v", err, refused)
			}
			if store.opened != 1 || !tc.sess.closed {
				t.Fatalf("opened=%d closed=%v want=1/true", store.opened, tc.sess.closed)
			}
		})
	}
}

func TestLimit(t *testing.T) {
	cases := []struct{ in, def, want int }{
		{0, 6, 6},
		{-2, 6, 0},
		{3, 6, 3},
	}
	for _, c := range cases {
		if got := limit(c.in, c.def); got != c.want {
			t.Fatalf("limit(%d,%d)=%d want %d", c.in, c.def, got, c.want)
		}
	}
}

func TestBuildContext(t *testing.T) {
	long := strings.Repeat("é", 401)
	nbr := int64(9)
	med, title := "Medication", "Lisinopril"
	top := []TopNode{
		{NodeID: 1, Label: "Diagnosis", Title: "Hypertension", Body: "  high BP  "},
		{NodeID: 2, Label: "TestResult", Title: "Potassium", Body: long},
	}
	rows := []NeighborRow{
		{SrcID: 1, SrcLabel: "Diagnosis", SrcTitle: "Hypertension", NbrID: &nbr, NbrLabel: &med, NbrTitle: &title, RelProps: map[string]any{"description": "first line"}},
		{SrcID: 2, SrcLabel: "TestResult", SrcTitle: "Potassium"},
		{SrcID: 2, SrcLabel: "TestResult", SrcTitle: "Potassium", NbrID: &nbr, NbrLabel: &med, NbrTitle: &title, RelProps: map[string]any{"weight": 0.5, "type": "prescribed"}},
	}
	got := BuildContext(top, rows)
	want := "Relevant Nodes:\n" +
		"1. [Diagnosis] Hypertension\nhigh BP\n" +
		"2. [TestResult] Potassium\n" + strings.Repeat("é", 400) + "…\n" +
		"\nNeighbor Relationships:\n" +
		"- [Diagnosis] Hypertension --ASSOCIATED_WITH--> [Medication] Lisinopril :: first line\n" +
		`- [TestResult] Potassium --ASSOCIATED_WITH--> [Medication] Lisinopril :: {"type":"prescribed","weight":0.5}`
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}
