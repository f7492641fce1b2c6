package wrk2

import (
	"context"
	"fmt"
	"net/http"

	"socialfeed/pkg/model"
	"socialfeed/pkg/services"
	"socialfeed/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type server struct {
	weaver.Implements[weaver.Main]
	feedService          weaver.Ref[services.FeedService]
	weightProfileService weaver.Ref[services.WeightProfileService]
	repostService        weaver.Ref[services.RepostService]
	mentionService       weaver.Ref[services.MentionService]
	lis                  weaver.Listener `weaver:"wrk2"`
	reqIDs               *utils.RequestIDs
}

func Serve(ctx context.Context, s *server) error {
	s.reqIDs = utils.NewRequestIDs(utils.MachineID())

	mux := http.NewServeMux()
	mux.Handle("/posts/created", instrument("posts_created", s.postCreatedHandler, http.MethodPost))
	mux.Handle("/feed", instrument("feed", s.feedHandler, http.MethodGet))
	mux.Handle("/profile", instrument("profile", s.profileHandler, http.MethodGet, http.MethodPatch))
	mux.Handle("/repost/original", instrument("repost_original", s.repostOriginalHandler, http.MethodGet))
	mux.Handle("/mentions", instrument("mentions", s.mentionsHandler, http.MethodPost))
	mux.Handle("/mention-policy", instrument("mention_policy", s.mentionPolicyHandler, http.MethodGet, http.MethodPatch))
	var handler http.Handler = mux
	s.Logger(ctx).Info("wrk2-api available", "addr", s.lis)
	return http.Serve(s.lis, handler)
}

func instrument(label string, fn func(http.ResponseWriter, *http.Request), methods ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, method := range methods {
		allowed[method] = struct{}{}
	}
	handler := func(w http.ResponseWriter, r *http.Request) {
		if _, ok := allowed[r.Method]; len(allowed) > 0 && !ok {
			msg := fmt.Sprintf("method %q not allowed", r.Method)
			http.Error(w, msg, http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
	return weaver.InstrumentHandlerFunc(label, handler)
}

// begin tags the request span and assigns the request id used in logs.
func (s *server) begin(ctx context.Context, endpoint string) int64 {
	reqID, err := s.reqIDs.Next()
	if err != nil {
		s.Logger(ctx).Warn("error generating request id", "msg", err.Error())
	}
	trace.SpanFromContext(ctx).AddEvent("handling http request",
		trace.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.Int64("req_id", reqID),
		))
	return reqID
}

func (s *server) postCreatedHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := s.begin(ctx, "posts_created")

	var req postCreatedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.feedService.Get().ProcessPostCreation(ctx, reqID, req.PostID); err != nil {
		s.Logger(ctx).Debug("post creation rejected", "req_id", reqID, "post_id", req.PostID, "msg", err.Error())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{ReqID: reqID, PostID: req.PostID})
}

func (s *server) feedHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := s.begin(ctx, "feed")

	userID, err := queryInt64(r, "user_id", nil)
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := queryInt64(r, "start", ptr(int64(0)))
	if err != nil {
		writeError(w, err)
		return
	}
	stop, err := queryInt64(r, "stop", ptr(int64(-1)))
	if err != nil {
		writeError(w, err)
		return
	}
	postIDs, err := s.feedService.Get().FetchFeed(ctx, reqID, userID, start, stop)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{UserID: userID, PostIDs: postIDs})
}

func (s *server) profileHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := s.begin(ctx, "profile")

	userID, err := queryInt64(r, "user_id", nil)
	if err != nil {
		writeError(w, err)
		return
	}
	var profile model.AlgorithmControlProfile
	if r.Method == http.MethodPatch {
		var patch model.ProfilePatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, err)
			return
		}
		profile, err = s.weightProfileService.Get().UpdateWeightProfile(ctx, reqID, userID, patch)
	} else {
		profile, err = s.weightProfileService.Get().GetOrCreateWeightProfile(ctx, reqID, userID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *server) repostOriginalHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := s.begin(ctx, "repost_original")

	postID, err := queryInt64(r, "post_id", nil)
	if err != nil {
		writeError(w, err)
		return
	}
	original, found, err := s.repostService.Get().ResolveOriginal(ctx, reqID, postID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := originalResponse{PostID: postID}
	if found {
		resp.Original = &original
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) mentionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := s.begin(ctx, "mentions")

	req, err := decodeMentionRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var mentions []model.Mention
	if req.Notify {
		mentions, err = s.mentionService.Get().ProcessMentions(ctx, reqID, req.Text, req.ActorID, req.ContentType)
	} else {
		mentions, err = s.mentionService.Get().ExtractMentions(ctx, reqID, req.Text, req.ActorID, req.ContentType)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mentionsResponse{Mentions: mentions})
}

func (s *server) mentionPolicyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := s.begin(ctx, "mention_policy")

	userID, err := queryInt64(r, "user_id", nil)
	if err != nil {
		writeError(w, err)
		return
	}
	var policy model.MentionPolicy
	if r.Method == http.MethodPatch {
		var patch model.PolicyPatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, err)
			return
		}
		policy, err = s.mentionService.Get().UpdateMentionPolicy(ctx, reqID, userID, patch)
	} else {
		policy, err = s.mentionService.Get().GetOrCreateMentionPolicy(ctx, reqID, userID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}
