package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/handlers"
)

func registerContractRoutes(api *gin.RouterGroup, contracts *handlers.ContractHandler, instances *handlers.InstanceHandler) {
	group := api.Group("/contracts")
	{
		group.GET("", contracts.List)
		group.POST("", contracts.Create)
		group.GET("/:id", contracts.Get)
		group.DELETE("/:id", contracts.Delete)
		group.PATCH("/:id/obligations/:obligationID", contracts.UpdateObligation)

		group.POST("/:id/join", contracts.Join)
		group.POST("/:id/sign", contracts.Sign)
		group.POST("/:id/opt-out", contracts.OptOut)
		group.POST("/:id/view", contracts.View)
		group.POST("/:id/nudge", contracts.Nudge)

		group.GET("/:id/instances", instances.ListCurrentWeek)
	}

	inst := api.Group("/instances")
	{
		inst.POST("/:id/complete", instances.Complete)
		inst.POST("/:id/view", instances.View)
	}
}
