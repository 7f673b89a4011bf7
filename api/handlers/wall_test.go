package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wall/api/routes"
	"wall/db"
	"wall/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWallRouter(t *testing.T) *gin.Engine {
	t.Helper()
	if db.ORM == nil {
		require.NoError(t, db.ConnectSQLiteDB("file::memory:?cache=shared"))
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes.PublicApi(r)
	return r
}

// registerAndLogin создает пользователя через API и возвращает токен
func registerAndLogin(t *testing.T, router *gin.Engine, role models.Role) (string, models.User) {
	t.Helper()
	nickname := fmt.Sprintf("%s_%s", strings.ToLower(gofakeit.FirstName()), gofakeit.Numerify("######"))
	password := gofakeit.Password(true, false, true, true, false, 10)

	body, _ := json.Marshal(map[string]string{
		"nickname":   nickname,
		"password":   password,
		"first_name": gofakeit.FirstName(),
		"last_name":  gofakeit.LastName(),
		"role":       string(role),
	})
	req, _ := http.NewRequest("POST", "/api/v1/auth/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body, _ = json.Marshal(map[string]string{"nickname": nickname, "password": password})
	req, _ = http.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var loginResp struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	return loginResp.Token, *loginResp.User
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createWallPost(t *testing.T, router *gin.Engine, token, content string) models.WallPost {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/posts", token, map[string]string{"content": content})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post models.WallPost
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	return post
}

func TestCreatePostStartsPending(t *testing.T) {
	router := setupWallRouter(t)
	token, user := registerAndLogin(t, router, models.ROLE_STUDENT)

	post := createWallPost(t, router, token, "Hello world")
	assert.Equal(t, models.STATUS_PENDING, post.Status)
	assert.Equal(t, user.ID, post.AuthorID)
	assert.Empty(t, post.ReactionCounts)

	// Pending пост не попадает в публичную ленту
	w := doJSON(t, router, "GET", "/api/v1/posts/approved", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wallResp models.WallResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wallResp))
	for _, p := range wallResp.Posts {
		assert.NotEqual(t, post.ID, p.ID)
	}

	// Но автор видит его среди своих
	w = doJSON(t, router, "GET", "/api/v1/posts/mine", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		Posts []models.WallPost `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.NotEmpty(t, mine.Posts)
	assert.Equal(t, post.ID, mine.Posts[0].ID)
}

func TestCreatePostValidation(t *testing.T) {
	router := setupWallRouter(t)
	token, _ := registerAndLogin(t, router, models.ROLE_STUDENT)

	w := doJSON(t, router, "POST", "/api/v1/posts", token, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/posts", "", map[string]string{"content": "anonymous"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestModerationFlow(t *testing.T) {
	router := setupWallRouter(t)
	studentToken, _ := registerAndLogin(t, router, models.ROLE_STUDENT)
	teacherToken, _ := registerAndLogin(t, router, models.ROLE_TEACHER)

	post := createWallPost(t, router, studentToken, "please approve me")

	// Студент модерацию не проходит по роли
	w := doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/posts/%d/status", post.ID), studentToken,
		map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Преподаватель одобряет
	w = doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/posts/%d/status", post.ID), teacherToken,
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Пост появился в публичной ленте
	w = doJSON(t, router, "GET", "/api/v1/posts/approved?page=1&limit=50", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wallResp models.WallResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wallResp))
	found := false
	for _, p := range wallResp.Posts {
		if p.ID == post.ID {
			found = true
		}
	}
	assert.True(t, found, "approved post must be in the public wall")

	// Терминальный статус не откатывается
	w = doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/posts/%d/status", post.ID), teacherToken,
		map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusConflict, w.Code)

	var stored models.Post
	require.NoError(t, db.ORM.First(&stored, post.ID).Error)
	assert.Equal(t, models.STATUS_APPROVED, stored.Status)
}

func TestCommentFlow(t *testing.T) {
	router := setupWallRouter(t)
	studentToken, _ := registerAndLogin(t, router, models.ROLE_STUDENT)
	teacherToken, _ := registerAndLogin(t, router, models.ROLE_TEACHER)

	post := createWallPost(t, router, studentToken, "post with comments")

	// Комментарий к несуществующему посту
	w := doJSON(t, router, "POST", "/api/v1/posts/999999/comments", studentToken,
		map[string]string{"content": "lost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "POST", fmt.Sprintf("/api/v1/posts/%d/comments", post.ID), studentToken,
		map[string]string{"content": "first!"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var comment models.WallComment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comment))
	assert.Equal(t, models.STATUS_PENDING, comment.Status)

	// Модерация комментария независима от поста
	w = doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/posts/comments/%d/status", comment.ID), teacherToken,
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Пост остался pending, комментарий при этом approved
	var storedPost models.Post
	require.NoError(t, db.ORM.First(&storedPost, post.ID).Error)
	assert.Equal(t, models.STATUS_PENDING, storedPost.Status)

	var storedComment models.Comment
	require.NoError(t, db.ORM.First(&storedComment, comment.ID).Error)
	assert.Equal(t, models.STATUS_APPROVED, storedComment.Status)
}

func TestReactionCounts(t *testing.T) {
	router := setupWallRouter(t)
	aliceToken, _ := registerAndLogin(t, router, models.ROLE_STUDENT)
	bobToken, _ := registerAndLogin(t, router, models.ROLE_STUDENT)

	post := createWallPost(t, router, aliceToken, "react to me")

	type reactionResp struct {
		ReactionCounts map[string]int `json:"reaction_counts"`
		TotalReactions int            `json:"total_reactions"`
	}

	// Дедупликации нет: каждое нажатие - плюс один
	for i := 0; i < 2; i++ {
		w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/posts/%d/reactions", post.ID), aliceToken,
			map[string]string{"type": "like"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/posts/%d/reactions", post.ID), bobToken,
		map[string]string{"type": "love"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp reactionResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]int{"like": 2, "love": 1}, resp.ReactionCounts)
	assert.Equal(t, 3, resp.TotalReactions)

	// Реакция на несуществующий пост
	w = doJSON(t, router, "POST", "/api/v1/posts/999999/reactions", aliceToken,
		map[string]string{"type": "like"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestModerationQueue(t *testing.T) {
	router := setupWallRouter(t)
	studentToken, _ := registerAndLogin(t, router, models.ROLE_STUDENT)
	teacherToken, _ := registerAndLogin(t, router, models.ROLE_TEACHER)

	post := createWallPost(t, router, studentToken, "queued post")

	w := doJSON(t, router, "GET", "/api/v1/moderation/queue", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/moderation/queue", teacherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue struct {
		Posts []models.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	found := false
	for _, p := range queue.Posts {
		if p.ID == post.ID {
			found = true
		}
	}
	assert.True(t, found, "pending post must be in the moderation queue")
}

type wsEnvelope struct {
	Event   string          `json:"event"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func dialWall(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/wall"
	headers := map[string][]string{"Authorization": {"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, headers)
	require.NoError(t, err, "WebSocket dial failed, resp: %+v", resp)

	// Приветствие
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var hello wsEnvelope
	require.NoError(t, json.Unmarshal(msg, &hello))
	require.Equal(t, "connected", hello.Event)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join-community-wall"}))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt wsEnvelope
	require.NoError(t, json.Unmarshal(msg, &evt))
	return evt
}

func TestWSClientEventRebroadcast(t *testing.T) {
	router := setupWallRouter(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	aliceToken, _ := registerAndLogin(t, router, models.ROLE_STUDENT)
	bobToken, _ := registerAndLogin(t, router, models.ROLE_STUDENT)

	alice := dialWall(t, ts, aliceToken)
	defer alice.Close()
	bob := dialWall(t, ts, bobToken)
	defer bob.Close()

	// Подписки доходят до менеджера комнат асинхронно с read loop
	time.Sleep(100 * time.Millisecond)

	data, err := models.EncodeWallEvent(models.EventReactionAdded, models.ReactionAddedPayload{
		PostID:         1,
		ReactionCounts: map[string]int{"like": 4},
		TotalReactions: 4,
	})
	require.NoError(t, err)
	require.NoError(t, bob.WriteMessage(websocket.TextMessage, data))

	evt := readEvent(t, alice)
	assert.Equal(t, models.EventReactionAdded, evt.Event)

	var payload models.ReactionAddedPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, map[string]int{"like": 4}, payload.ReactionCounts)
}

func TestWSApprovalBroadcast(t *testing.T) {
	router := setupWallRouter(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	studentToken, _ := registerAndLogin(t, router, models.ROLE_STUDENT)
	teacherToken, _ := registerAndLogin(t, router, models.ROLE_TEACHER)

	post := createWallPost(t, router, studentToken, "broadcast me")

	watcher := dialWall(t, ts, studentToken)
	defer watcher.Close()
	time.Sleep(100 * time.Millisecond)

	// Одобрение поста рассылает post-created в комнату
	w := doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/posts/%d/status", post.ID), teacherToken,
		map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	evt := readEvent(t, watcher)
	require.Equal(t, models.EventPostCreated, evt.Event)

	var approved models.WallPost
	require.NoError(t, json.Unmarshal(evt.Payload, &approved))
	assert.Equal(t, post.ID, approved.ID)
	assert.Equal(t, models.STATUS_APPROVED, approved.Status)
}
