package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"messaging-gateway/internal/attachments"
	"messaging-gateway/internal/auth"
	"messaging-gateway/internal/db"
	"messaging-gateway/internal/handlers"
	"messaging-gateway/internal/messaging"
	"messaging-gateway/internal/middleware"
	"messaging-gateway/internal/observability"
	"messaging-gateway/internal/rabbitmq"
	"messaging-gateway/internal/repositories"
	"messaging-gateway/internal/telemetry"
	"messaging-gateway/internal/ws"
)

const serviceName = "messaging-gateway"

func main() {
	ctx := context.Background()

	shutdownTracing := initTracing(ctx)
	defer func() {
		c, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	store, err := attachments.NewS3Store(attachments.S3Config{
		Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
		AccessKey: getEnv("S3_ACCESS_KEY", "minioadmin"),
		SecretKey: getEnv("S3_SECRET_KEY", "minioadmin"),
		UseSSL:    getEnv("S3_USE_SSL", "false") == "true",
		Bucket:    getEnv("S3_BUCKET", "gateway-media"),
	})
	if err != nil {
		log.Fatalf("failed to build object store: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("failed to ensure media bucket: %v", err)
	}

	amqpURL := os.Getenv("AMQP_URL")
	exchange := getEnv("AMQP_EXCHANGE", "gateway.events")

	auditPublisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s reason=%q", rabbitmq.PublisherMode(auditPublisher), rabbitmq.PublisherNoopReason(auditPublisher))

	audit := telemetry.NewAuditEmitter(auditPublisher, "audit_log.gateway", serviceName, getEnv("ENV", "dev"))

	if eventPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err == nil {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	} else {
		log.Printf("ws event publishing disabled: %v", err)
	}

	verifier := auth.NewVerifier(getEnv("ACCESS_TOKEN_SECRET", "dev-secret"))

	userRepo := repositories.NewUserRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	groupMessageRepo := repositories.NewGroupMessageRepo(database)

	hub := ws.NewHub()
	presence := ws.NewPresenceTracker()
	ingestor := attachments.NewIngestor(store, getEnv("MEDIA_PUBLIC_BASE", "http://localhost:9000/gateway-media"))

	svc := messaging.NewService(userRepo, groupRepo, messageRepo, groupMessageRepo, hub, ingestor)

	gateway := ws.NewGatewayHandler(hub, presence, verifier, userRepo, groupRepo, svc, audit)
	history := handlers.NewHistoryHandler(messageRepo, groupRepo, groupMessageRepo)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gateway.Handle)
	router.GET("/conversations/:user_id/messages", authMiddleware, history.GetConversation)
	router.GET("/groups/:group_id/messages", authMiddleware, history.GetGroupMessages)

	handlers.RegisterDebugRoutes(router, audit, getEnv("DEBUG_ROUTES", "false") == "true")

	port := getEnv("PORT", "8086")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func initTracing(ctx context.Context) func(context.Context) error {
	endpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
		return func(context.Context) error { return nil }
	}

	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		attribute.String("deployment.environment", getEnv("ENV", "dev")),
	))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
