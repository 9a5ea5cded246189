package httptransport

import (
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"

	"signupd/internal/platform/logger"
	"signupd/internal/registration"
	"signupd/internal/registration/persistence"
	derrors "signupd/pkg/domain-errors"
	"signupd/pkg/testutil"
)

type SnapshotHandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestSnapshotHandlerSuite(t *testing.T) {
	suite.Run(t, new(SnapshotHandlerSuite))
}

func (s *SnapshotHandlerSuite) SetupTest() {
	log := logger.NewNop()
	adapter := persistence.NewAdapter(persistence.NewInMemoryStore(), log, nil)
	s.router = NewRouter(Deps{
		Registration: NewRegistrationHandler(nil, nil, nil, log),
		Snapshots:    NewSnapshotHandler(adapter),
		Auth:         NewAuthHandler(),
		Logger:       log,
	})
}

func (s *SnapshotHandlerSuite) TestRestoreWithoutSaveReturns404() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/form/snapshot"))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	testutil.AssertErrorCode(s.T(), rr, string(derrors.CodeNotFound))
}

func (s *SnapshotHandlerSuite) TestSaveRestoreDiscard() {
	body := map[string]any{
		"email":           "resume@x.com",
		"username":        "resume_user",
		"password":        "StrongPassw0rd!",
		"confirmPassword": "StrongPassw0rd!",
		"terms":           true,
	}
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPut, "/api/form/snapshot", body))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/form/snapshot"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	restored := testutil.UnmarshalResponse[registration.Data](s.T(), rr)
	s.Equal("resume@x.com", restored.Email)
	s.Equal("resume_user", restored.Username)

	s.Run("sensitive fields never come back", func() {
		s.Empty(restored.Password)
		s.Empty(restored.ConfirmPassword)
		s.False(restored.Terms)
	})

	s.Run("sensitive keys absent from the payload", func() {
		var payload map[string]any
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &payload))
		s.NotContains(payload, registration.FieldPassword)
		s.NotContains(payload, registration.FieldConfirmPassword)
		s.NotContains(payload, registration.FieldTerms)
	})

	s.Run("discard removes the snapshot", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/api/form/snapshot"))
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/form/snapshot"))
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})
}

func (s *SnapshotHandlerSuite) TestSnapshotsAreKeyScoped() {
	body := map[string]any{"email": "keyed@x.com"}
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPut, "/api/form/snapshot?key=visitor-a", body))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/form/snapshot?key=visitor-b"))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/form/snapshot?key=visitor-a"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}
