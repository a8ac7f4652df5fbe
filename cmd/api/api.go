package api

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/service/appointment"
	"github.com/mindwell-app/mindwell-server/service/availability"
	"github.com/mindwell-app/mindwell-server/service/chat"
	"github.com/mindwell-app/mindwell-server/service/counselor"
	"github.com/mindwell-app/mindwell-server/service/forum"
	"github.com/mindwell-app/mindwell-server/service/journal"
	"github.com/mindwell-app/mindwell-server/service/livechat"
	"github.com/mindwell-app/mindwell-server/service/notification"
	"github.com/mindwell-app/mindwell-server/service/user"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	notifier := notification.NewService(s.db)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	counselorHandler := counselor.NewCounselorHandler(s.db)
	counselorHandler.RegisterRoutes(subrouter)

	availabilityHandler := availability.NewAvailabilityHandler(s.db)
	availabilityHandler.RegisterRoutes(subrouter)

	appointmentHandler := appointment.NewAppointmentHandler(s.db, notifier)
	appointmentHandler.RegisterRoutes(subrouter)

	forumHandler := forum.NewPostHandler(s.db)
	forumHandler.RegisterRoutes(subrouter)

	journalHandler := journal.NewJournalHandler(s.db)
	journalHandler.RegisterRoutes(subrouter)

	chatHandler := chat.NewChatHandler(s.db)
	chatHandler.RegisterRoutes(subrouter)

	liveChatHandler := livechat.NewLiveChatHandler(s.db)
	liveChatHandler.RegisterRoutes(subrouter)

	notificationHandler := notification.NewNotificationHandler(s.db)
	notificationHandler.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	handler := handlers.RecoveryHandler()(cors(handlers.LoggingHandler(os.Stdout, router)))

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, handler)
}
