package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"diagnostic-lab-server/internal/access"
	"diagnostic-lab-server/internal/catalog"
	"diagnostic-lab-server/internal/config"
	"diagnostic-lab-server/internal/handlers"
	"diagnostic-lab-server/internal/middleware"
	"diagnostic-lab-server/internal/models"
	"diagnostic-lab-server/internal/results"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config) {
	// Core services shared by the handlers
	resolver := access.NewResolver(db, access.NewPlaintextVerifier(db))
	ledger := access.NewLedger(db)
	gate := access.NewGate(ledger)
	store := results.NewStore(db)
	snapshotter := catalog.NewSnapshotter(catalog.NewGormPriceSource(db))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	patientHandler := handlers.NewPatientHandler(db)
	studyHandler := handlers.NewStudyHandler(db)
	appointmentHandler := handlers.NewAppointmentHandler(db, snapshotter)
	invoiceHandler := handlers.NewInvoiceHandler(db, cfg, resolver, ledger)
	resultHandler := handlers.NewResultHandler(db, store, resolver, gate)
	portalHandler := handlers.NewPortalHandler(resolver)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}

		// Patient self-service portal: access is granted by what the caller
		// knows, never by a staff session.
		portal := public.Group("/portal")
		{
			portal.GET("/resultado/:code", portalHandler.GetResultBySampleCode)
			portal.GET("/qr/:token", portalHandler.GetResultsByQR)
			portal.POST("/acceso-paciente", portalHandler.PatientAccess)
		}
	}

	// Authenticated staff routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		// Staff user administration (admins only)
		userRoutes := private.Group("/users")
		userRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			userRoutes.POST("", userHandler.CreateUser)
			userRoutes.GET("", userHandler.GetUsers)
			userRoutes.GET("/:id", userHandler.GetUserByID)
			userRoutes.PUT("/:id", userHandler.UpdateUser)
			userRoutes.DELETE("/:id", userHandler.DeleteUser)
		}

		// Patient master data
		patientRoutes := private.Group("/pacientes")
		{
			patientRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleReceptionist), patientHandler.CreatePatient)
			patientRoutes.GET("", patientHandler.GetPatients)
			patientRoutes.GET("/:id", patientHandler.GetPatientByID)
			patientRoutes.PUT("/:id", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleReceptionist), patientHandler.UpdatePatient)
		}

		// Study catalog (price edits never touch booked appointments)
		studyRoutes := private.Group("/estudios")
		{
			studyRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleAdmin), studyHandler.CreateStudy)
			studyRoutes.GET("", studyHandler.GetStudies)
			studyRoutes.GET("/:id", studyHandler.GetStudyByID)
			studyRoutes.PUT("/:id", middleware.RoleAuthMiddleware(models.RoleAdmin), studyHandler.UpdateStudy)
		}

		// Appointments
		appointmentRoutes := private.Group("/citas")
		{
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleReceptionist, models.RoleDoctor), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id/estado", appointmentHandler.UpdateAppointmentStatus)
		}

		// Invoices
		invoiceRoutes := private.Group("/facturas")
		{
			invoiceRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleReceptionist), invoiceHandler.CreateInvoice)
			invoiceRoutes.GET("", invoiceHandler.GetInvoices)
			invoiceRoutes.GET("/:id", invoiceHandler.GetInvoiceByID)
			invoiceRoutes.POST("/:id/pagos", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleReceptionist), invoiceHandler.RegisterPayment)
			invoiceRoutes.POST("/:id/anular", middleware.RoleAuthMiddleware(models.RoleAdmin), invoiceHandler.AnnulInvoice)
			invoiceRoutes.POST("/:id/acceso", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleReceptionist), invoiceHandler.IssuePortalAccess)
		}

		// Invoice lookup by number or legacy id (staff search box)
		private.GET("/factura/:value", invoiceHandler.GetInvoiceByNumber)

		// Results
		resultRoutes := private.Group("/resultados")
		{
			resultRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleLab), resultHandler.CreateResult)
			resultRoutes.GET("", resultHandler.GetResults)
			resultRoutes.GET("/:id", resultHandler.GetResultByID)
			resultRoutes.PUT("/:id", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleLab, models.RoleDoctor), resultHandler.UpdateResult)
			resultRoutes.DELETE("/:id", middleware.RoleAuthMiddleware(models.RoleAdmin), resultHandler.DeleteResult)
			resultRoutes.PUT("/:id/validar", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleDoctor, models.RoleLab), resultHandler.ValidateResult)
			resultRoutes.PUT("/:id/imprimir", resultHandler.MarkPrinted)
			resultRoutes.PATCH("/:id/entregar", resultHandler.MarkDelivered)
			resultRoutes.GET("/:id/verificar-pago", resultHandler.VerifyPayment)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
