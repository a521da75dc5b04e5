package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

// HandleUserListGET lists directory accounts. Purchase secrets stay private.
func HandleUserListGET(dir core.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		accts, err := dir.ListAccounts(c.Request.Context())
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		out := make([]userView, 0, len(accts))
		for _, a := range accts {
			out = append(out, toUserView(a))
		}
		c.JSON(http.StatusOK, gin.H{"users": out})
	}
}
