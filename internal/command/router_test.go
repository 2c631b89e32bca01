package command

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/aura/internal/budget"
	"github.com/thebtf/aura/internal/capability"
	"github.com/thebtf/aura/pkg/models"
)

// stubClarifier returns a canned interpretation and records its inputs.
type stubClarifier struct {
	result     *capability.ClarifyResult
	err        error
	gotCommand string
	gotContext string
}

func (s *stubClarifier) Clarify(_ context.Context, command, contextText string) (*capability.ClarifyResult, error) {
	s.gotCommand = command
	s.gotContext = contextText
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type RouterSuite struct {
	suite.Suite

	pending *PendingManager
	counter *budget.Counter
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.pending = NewPendingManager(time.Minute)

	counter, err := budget.NewCounter()
	s.Require().NoError(err)
	s.counter = counter
}

func (s *RouterSuite) TearDownTest() {
	s.pending.Shutdown()
}

func (s *RouterSuite) newRouter(clarifier capability.Clarifier) *Router {
	return NewRouter(clarifier, s.pending, s.counter, 1500)
}

func (s *RouterSuite) TestExactMatch() {
	router := s.newRouter(nil)

	intent, outcome := router.Route(context.Background(), "search for react tutorial", "")
	s.Require().NotNil(intent)
	s.Equal(models.RoutingMatched, outcome.Status)
	s.Equal(models.StrategyExact, outcome.Strategy)
	s.Equal("web_search", intent.FunctionName)
	s.Equal(1.0, intent.Confidence)
	s.Equal("react tutorial", intent.ExtractedArgs["query"])
	s.Equal("search for react tutorial", intent.RawCommand)
}

func (s *RouterSuite) TestLongestPhraseWins() {
	router := s.newRouter(nil)

	// "search for" must bind before the bare "search" phrase, otherwise the
	// argument would keep a stray "for".
	intent, _ := router.Route(context.Background(), "search for soup recipes", "")
	s.Require().NotNil(intent)
	s.Equal("soup recipes", intent.ExtractedArgs["query"])
}

func (s *RouterSuite) TestExactMatchTable() {
	router := s.newRouter(nil)

	cases := []struct {
		command string
		action  string
		argKey  string
		argVal  string
	}{
		{"google weather tomorrow", "web_search", "query", "weather tomorrow"},
		{"launch Terminal", "open_app", "app", "Terminal"},
		{"go to github.com", "open_url", "url", "https://github.com"},
		{"visit https://example.com/a", "open_url", "url", "https://example.com/a"},
		{"remind me to stretch", "remind", "message", "stretch"},
		{"take a note milk is out", "take_note", "text", "milk is out"},
		{"schedule standup at 9", "schedule_event", "event", "standup at 9"},
		{"play music", "play_music", "", ""},
	}

	for _, c := range cases {
		s.Run(c.command, func() {
			intent, outcome := router.Route(context.Background(), c.command, "")
			s.Require().NotNil(intent, "command should match: %s", c.command)
			s.Equal(models.RoutingMatched, outcome.Status)
			s.Equal(c.action, intent.FunctionName)
			if c.argKey != "" {
				s.Equal(c.argVal, intent.ExtractedArgs[c.argKey])
			}
		})
	}
}

func (s *RouterSuite) TestExactMatchCanonicalizesAppName() {
	router := s.newRouter(nil)

	intent, _ := router.Route(context.Background(), "open chrome", "")
	s.Require().NotNil(intent)
	s.Equal("Chrome", intent.ExtractedArgs["app"], "known apps get their display spelling")
	s.Equal(1.0, intent.Confidence, "identical ignoring case costs no confidence")
}

func (s *RouterSuite) TestFuzzyMatchCorrectsTypos() {
	router := s.newRouter(nil)

	intent, outcome := router.Route(context.Background(), "opne chrme", "")
	s.Require().NotNil(intent)
	s.Equal(models.RoutingMatched, outcome.Status)
	s.Equal(models.StrategyFuzzy, outcome.Strategy)
	s.Equal("open_app", intent.FunctionName)
	s.Equal("Chrome", intent.ExtractedArgs["app"])
	s.Less(intent.Confidence, 1.0)
	s.Greater(intent.Confidence, 0.5)
}

func (s *RouterSuite) TestFuzzyMatchVerbOnly() {
	router := s.newRouter(nil)

	intent, outcome := router.Route(context.Background(), "serach for golang generics", "")
	s.Require().NotNil(intent)
	s.Equal(models.StrategyFuzzy, outcome.Strategy)
	s.Equal("web_search", intent.FunctionName)
	s.Equal("golang generics", intent.ExtractedArgs["query"])
	s.Less(intent.Confidence, 1.0)
}

func (s *RouterSuite) TestUnknownAppNameIsKept() {
	router := s.newRouter(nil)

	intent, _ := router.Route(context.Background(), "open internalbuildtool", "")
	s.Require().NotNil(intent)
	s.Equal("internalbuildtool", intent.ExtractedArgs["app"],
		"names far from every known app pass through untouched")
}

func (s *RouterSuite) TestEmptyCommandRejected() {
	router := s.newRouter(nil)

	intent, outcome := router.Route(context.Background(), "   ", "")
	s.Nil(intent)
	s.Equal(models.RoutingRejected, outcome.Status)
	s.Equal("empty command", outcome.Reason)
}

func (s *RouterSuite) TestClarifierPath() {
	clarifier := &stubClarifier{result: &capability.ClarifyResult{
		ClarifiedIntent: "Search the web for the jabberwock",
		ActionSteps:     []string{"search for jabberwock"},
		Confidence:      0.6,
	}}
	router := s.newRouter(clarifier)

	intent, outcome := router.Route(context.Background(), "flibber the jabberwock", "editing poem.txt")
	s.Nil(intent, "nothing executes on the clarifier path")
	s.Equal(models.RoutingNeedsConfirmation, outcome.Status)
	s.Equal(models.StrategyClarifier, outcome.Strategy)

	s.Require().NotNil(outcome.Clarification)
	s.NotEmpty(outcome.Clarification.RequestID)
	s.Equal("Search the web for the jabberwock", outcome.Clarification.ClarifiedIntent)
	s.Equal([]string{"search for jabberwock"}, outcome.Clarification.ActionSteps)
	s.False(outcome.Clarification.ExpiresAt.IsZero(), "pending entry is stamped with a deadline")

	s.Equal(1, s.pending.Len(), "clarification is parked for confirmation")
	s.Equal("flibber the jabberwock", clarifier.gotCommand)
	s.Equal("editing poem.txt", clarifier.gotContext)
}

func (s *RouterSuite) TestClarifierContextIsTruncated() {
	clarifier := &stubClarifier{result: &capability.ClarifyResult{
		ClarifiedIntent: "x", ActionSteps: []string{"search for x"}, Confidence: 0.5,
	}}
	router := NewRouter(clarifier, s.pending, s.counter, 20)

	long := ""
	for i := 0; i < 500; i++ {
		long += fmt.Sprintf("line %d of ambient context. ", i)
	}
	router.Route(context.Background(), "flibber the jabberwock", long)

	s.NotEmpty(clarifier.gotContext)
	s.Less(len(clarifier.gotContext), len(long), "context shrinks to the token budget")
}

func (s *RouterSuite) TestClarifierFailureRejects() {
	clarifier := &stubClarifier{err: fmt.Errorf("sidecar down")}
	router := s.newRouter(clarifier)

	intent, outcome := router.Route(context.Background(), "flibber the jabberwock", "")
	s.Nil(intent)
	s.Equal(models.RoutingRejected, outcome.Status)
	s.NotEmpty(outcome.Reason)
	s.Zero(s.pending.Len())
}

func (s *RouterSuite) TestNoClarifierRejects() {
	router := s.newRouter(nil)

	intent, outcome := router.Route(context.Background(), "flibber the jabberwock", "")
	s.Nil(intent)
	s.Equal(models.RoutingRejected, outcome.Status)
}

func (s *RouterSuite) TestHeuristicClarifierRoundTrip() {
	router := s.newRouter(&capability.HeuristicClarifier{})

	_, outcome := router.Route(context.Background(), "flibber the jabberwock", "")
	s.Equal(models.RoutingNeedsConfirmation, outcome.Status)
	s.Require().NotNil(outcome.Clarification)
	s.Require().NotEmpty(outcome.Clarification.ActionSteps)

	// The heuristic's action step must route without another clarification.
	intent, stepOutcome := router.Route(context.Background(), outcome.Clarification.ActionSteps[0], "")
	s.Require().NotNil(intent)
	s.Equal(models.RoutingMatched, stepOutcome.Status)
	s.Equal("web_search", intent.FunctionName)
}

func (s *RouterSuite) TestCategoriesCopy() {
	router := s.newRouter(nil)

	cats := router.Categories()
	s.NotEmpty(cats)
	cats[0].Name = "mutated"
	s.NotEqual("mutated", router.Categories()[0].Name)
}
