package indexer

import (
	"context"
	"errors"
	"net/http"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

// Service is the read-only HTTP API over the index.
type Service struct {
	logger  cmtlog.Logger
	engine  *gin.Engine
	indexer *ChainIndexer
	server  *http.Server
}

func NewService(logger cmtlog.Logger, listenAddr string, indexer *ChainIndexer) *Service {
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Service{
		logger:  logger.With("module", "service"),
		engine:  r,
		indexer: indexer,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getEvents", s.handleGetEvents)
	s.engine.GET("/status", s.handleStatus)
	s.server = &http.Server{
		Addr:    listenAddr,
		Handler: s.engine,
	}
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called.
func (s *Service) Start() error {
	s.logger.Info("service listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type ProposalInfo struct {
	Proposal Proposal        `json:"proposal"`
	Events   []ProposalEvent `json:"events"`
}

type GetProposalsReq struct {
	ProposalId *uint64 `json:"proposalId"`
	Status     *uint64 `json:"status"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
}

type GetProposalResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     uint64         `json:"total"`
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var response GetProposalResponse
	response.Proposals = make([]ProposalInfo, 0)
	var requestData GetProposalsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.ProposalId != nil {
		proposalInfo, err := s.getProposalInfo(*requestData.ProposalId)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "proposal not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, proposalInfo)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	proposals, total, err := s.indexer.getProposals(requestData.Status, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Total = total
	for _, proposal := range proposals {
		events, _, err := s.indexer.getEventsByProposal(&proposal.ProposalIndex, 0, MaxPageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, ProposalInfo{Proposal: proposal, Events: events})
	}
	c.JSON(http.StatusOK, response)
}

func (s *Service) getProposalInfo(index uint64) (ProposalInfo, error) {
	proposal, err := s.indexer.getProposalByIndex(index)
	if err != nil {
		return ProposalInfo{}, err
	}
	events, _, err := s.indexer.getEventsByProposal(&index, 0, MaxPageSize)
	if err != nil {
		return ProposalInfo{}, err
	}
	return ProposalInfo{Proposal: proposal, Events: events}, nil
}

type GetEventsReq struct {
	ProposalId *uint64 `json:"proposalId"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
}

type GetEventsResponse struct {
	Events []ProposalEvent `json:"events"`
	Total  uint64          `json:"total"`
}

func (s *Service) handleGetEvents(c *gin.Context) {
	var requestData GetEventsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	events, total, err := s.indexer.getEventsByProposal(requestData.ProposalId, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, GetEventsResponse{Events: events, Total: total})
}

func (s *Service) handleStatus(c *gin.Context) {
	height, err := s.indexer.indexedHeight()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"height": height})
}
