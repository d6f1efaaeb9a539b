package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListWHTRates(c *gin.Context) {
	rates, err := s.referenceRepo.ListWHTRates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wht_rates": rates})
}

func (s *Server) ListStates(c *gin.Context) {
	states, err := s.referenceRepo.ListStates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"states": states})
}
