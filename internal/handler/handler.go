package handler

import (
	"github.com/ashwinyue/next-agent/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Auth      *AuthHandler
	Agent     *AgentHandler
	Admission *AdmissionHandler
	System    *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	var uploader Uploader
	if svc.Knowledge != nil {
		uploader = svc.Knowledge
	}

	return &Handlers{
		Auth:      NewAuthHandler(svc.Auth),
		Agent:     NewAgentHandler(svc.Agent),
		Admission: NewAdmissionHandler(uploader),
		System:    NewSystemHandler(),
	}
}
