package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"messenger/internal/config"
	"messenger/internal/db"
	"messenger/internal/domain"
	"messenger/internal/repository"
	"messenger/internal/service"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	var messageRepo repository.MessageRepository = repository.NewMemoryMessageRepository()
	if cfg.UsesPostgres() {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		messageRepo = repository.NewPgMessageRepository(pool)
	} else {
		fmt.Println("DATABASE_URL vacio: los mensajes viven solo en memoria durante esta sesion.")
	}

	messageSvc := service.NewMessageService(logger, messageRepo, nil)

	for {
		fmt.Println("\n===== Messenger =====")
		fmt.Println("[1] Enviar mensaje")
		fmt.Println("[2] Listar mensajes")
		fmt.Println("[3] Marcar como leido")
		fmt.Println("[4] Salir")
		fmt.Print("Selecciona una opcion: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		switch strings.TrimSpace(line) {
		case "1":
			if err := sendFlow(ctx, reader, messageSvc); err != nil {
				fmt.Printf("Error enviando: %v\n", err)
			}
		case "2":
			if err := listFlow(ctx, reader, messageSvc); err != nil {
				fmt.Printf("Error listando: %v\n", err)
			}
		case "3":
			if err := markReadFlow(ctx, reader, messageSvc); err != nil {
				fmt.Printf("Error marcando: %v\n", err)
			}
		case "4":
			return
		default:
			fmt.Println("Opcion invalida.")
		}
	}
}

func sendFlow(ctx context.Context, reader *bufio.Reader, svc *service.MessageService) error {
	in := service.SendInput{
		Sender:         prompt(reader, "Remitente: "),
		Recipient:      prompt(reader, "Destinatario: "),
		MessageContent: prompt(reader, "Mensaje: "),
	}
	msg, err := svc.Send(ctx, in)
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		fmt.Printf("Mensaje invalido (%s): %s\n", vErr.Field, vErr.Reason)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Enviado con id %d a las %s\n", msg.ID, msg.SentDatetime.Format("2006-01-02 15:04:05"))
	return nil
}

func listFlow(ctx context.Context, reader *bufio.Reader, svc *service.MessageService) error {
	in, err := parseListInput(
		prompt(reader, "Filtrar por remitente (enter = todos): "),
		prompt(reader, "Filtrar por destinatario (enter = todos): "),
		prompt(reader, "Leidos? [s/n/enter = todos]: "),
	)
	if err != nil {
		return err
	}
	messages, err := svc.List(ctx, in)
	if err != nil {
		return err
	}
	printMessages(os.Stdout, messages)
	return nil
}

func markReadFlow(ctx context.Context, reader *bufio.Reader, svc *service.MessageService) error {
	id, err := strconv.ParseInt(prompt(reader, "ID del mensaje: "), 10, 64)
	if err != nil {
		return fmt.Errorf("id invalido: %w", err)
	}
	msg, err := svc.MarkRead(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Mensaje %d marcado como leido.\n", msg.ID)
	return nil
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	text, _ := reader.ReadString('\n')
	return strings.TrimSpace(text)
}

// parseListInput traduce las respuestas del menu; vacio significa sin filtro.
func parseListInput(sender, recipient, read string) (service.ListInput, error) {
	var in service.ListInput
	if sender != "" {
		in.Sender = &sender
	}
	if recipient != "" {
		in.Recipient = &recipient
	}
	switch strings.ToLower(read) {
	case "":
	case "s", "si", "y", "yes", "true":
		v := true
		in.IsRead = &v
	case "n", "no", "false":
		v := false
		in.IsRead = &v
	default:
		return service.ListInput{}, fmt.Errorf("opcion de leidos invalida: %q", read)
	}
	return in, nil
}

func printMessages(w io.Writer, messages []domain.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(w, "Sin mensajes en los ultimos 30 dias.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFECHA\tDE\tPARA\tLEIDO\tMENSAJE")
	for _, m := range messages {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%s\n",
			m.ID,
			m.SentDatetime.Format("2006-01-02 15:04:05"),
			m.Sender,
			m.Recipient,
			m.IsRead,
			m.MessageContent,
		)
	}
	tw.Flush()
}
