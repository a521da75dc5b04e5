package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

type addUserRequest struct {
	Username string `json:"username"`
}

type userView struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserView(a core.Account) userView {
	return userView{ID: a.ID, Username: a.Username, CreatedAt: a.CreatedAt}
}

// HandleUserAddPOST registers a username in the identity directory.
func HandleUserAddPOST(dir core.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addUserRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		acct, err := dir.CreateAccount(c.Request.Context(), req.Username)
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, toUserView(*acct))
	}
}
